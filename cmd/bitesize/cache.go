package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bitesizeirish/bitesize-cursai/internal/sound"
)

type OutputFormat string

func (f *OutputFormat) Set(val string) error {
	for _, format := range allOutputFormats {
		if val == string(format) {
			*f = format
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s", val)
}

func (f OutputFormat) String() string {
	return string(f)
}

func (f *OutputFormat) Type() string {
	return "OutputFormat"
}

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatYAML  OutputFormat = "yaml"
)

var (
	_                pflag.Value = (*OutputFormat)(nil)
	allOutputFormats             = []OutputFormat{OutputFormatTable, OutputFormatYAML}
)

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the sound cache",
	}
	cacheCmd.AddCommand(
		newCacheGetCommand(),
		newCacheStatusCommand(),
		newCacheInvalidateCommand(),
		newCacheClearCommand(),
		newCacheCountCommand(),
		newCachePurgeCommand(),
		newCacheListCommand(),
	)
	return cacheCmd
}

// withService runs fn against a fresh sound.Service and releases the store
// afterwards.
func withService(ctx context.Context, fn func(env *environment, service *sound.Service) error) (err error) {
	env, err := newEnvironment(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close store > %w", closeErr)
		}
	}()
	return fn(env, env.factory.New())
}

func parseSoundID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid sound ID: %q", value)
	}
	return id, nil
}

func newCacheGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get SOUND_ID",
		Short: "Resolve a sound through the caches and the Sounds API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSoundID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				record, err := service.GetSound(cmd.Context(), id)
				out := cmd.OutOrStdout()
				writeMeta(out, service.LastMeta())
				if err != nil {
					return fmt.Errorf("service.GetSound(%d) > %w", id, err)
				}
				return writeYAML(out, record)
			})
		},
	}
}

func newCacheStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status SOUND_ID",
		Short: "Show what the persistent cache holds for a sound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSoundID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				record, found, err := service.GetCachedSound(ctx, id)
				if err != nil {
					return fmt.Errorf("service.GetCachedSound(%d) > %w", id, err)
				}
				_, _ = fmt.Fprintf(out, "Cache key: %s\n", sound.CacheKey(id))
				if !found {
					_, _ = fmt.Fprintf(out, "Status: %s\n", color.RedString("NOT CACHED"))
					return nil
				}
				_, _ = fmt.Fprintf(out, "Status: %s\n", color.GreenString("CACHED"))
				_, _ = fmt.Fprintf(out, "Text: %s\n", record.Text())
				_, _ = fmt.Fprintf(out, "Recording: %s\n", record.RecordingState())

				expiresAt, ok, err := service.GetCacheExpiry(ctx, id)
				if err != nil {
					return fmt.Errorf("service.GetCacheExpiry(%d) > %w", id, err)
				}
				if ok {
					_, _ = fmt.Fprintf(out, "Expires: %s (%s)\n", expiresAt.Local().Format(time.DateTime), humanize.Time(expiresAt))
				}
				return nil
			})
		},
	}
}

func newCacheInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate SOUND_ID",
		Short: "Remove a sound from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSoundID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				if err := service.Invalidate(cmd.Context(), id); err != nil {
					return fmt.Errorf("service.Invalidate(%d) > %w", id, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Invalidated sound %d\n", id)
				return nil
			})
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached sound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				count, err := service.ClearAllCaches(cmd.Context())
				if err != nil {
					return fmt.Errorf("service.ClearAllCaches() > %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", pluralSounds(count))
				return nil
			})
		},
	}
}

func newCacheCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count cached sounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				count, err := service.GetCachedSoundsCount(cmd.Context())
				if err != nil {
					return fmt.Errorf("service.GetCachedSoundsCount() > %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func newCachePurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entries from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(_ *environment, service *sound.Service) error {
				removed, err := service.PurgeExpired(cmd.Context())
				if err != nil {
					return fmt.Errorf("service.PurgeExpired() > %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Purged %s expired entries\n", humanize.Comma(int64(removed)))
				return nil
			})
		},
	}
}

type listedSound struct {
	ID        int64        `yaml:"id"`
	ExpiresAt *time.Time   `yaml:"expires_at,omitempty"`
	Record    sound.Record `yaml:"record"`
}

func newCacheListCommand() *cobra.Command {
	var limit int
	output := OutputFormatTable

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recently cached sounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(env *environment, service *sound.Service) error {
				ctx := cmd.Context()
				if !cmd.Flags().Changed("limit") {
					limit = env.cfg.Cache.ListLimit
				}

				cached, err := service.GetAllCachedSounds(ctx, limit)
				if err != nil {
					return fmt.Errorf("service.GetAllCachedSounds() > %w", err)
				}
				listed := make([]listedSound, 0, len(cached))
				for _, c := range cached {
					item := listedSound{ID: c.ID, Record: c.Record}
					expiresAt, ok, err := service.GetCacheExpiry(ctx, c.ID)
					if err != nil {
						return fmt.Errorf("service.GetCacheExpiry(%d) > %w", c.ID, err)
					}
					if ok {
						item.ExpiresAt = &expiresAt
					}
					listed = append(listed, item)
				}

				if output == OutputFormatYAML {
					return writeYAML(cmd.OutOrStdout(), listed)
				}
				writeSoundTable(cmd.OutOrStdout(), listed)
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&limit, "limit", sound.DefaultListLimit, "maximum number of sounds, defaults to cache.list_limit")
	flags.Var(&output, "output", fmt.Sprintf("output format. Possible values are %v", allOutputFormats))
	return cmd
}

func writeSoundTable(out io.Writer, listed []listedSound) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTEXT\tRECORDING\tEXPIRES")
	for _, item := range listed {
		record := item.Record
		text := record.Text()
		if text == "" {
			text = record.Label()
		}
		expires := "-"
		if item.ExpiresAt != nil {
			expires = humanize.Time(*item.ExpiresAt)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ID, text, record.RecordingState(), expires)
	}
	_ = w.Flush()
}

func writeMeta(out io.Writer, meta sound.Meta) {
	disposition := color.YellowString(string(meta.Cache))
	if meta.Cache == sound.DispositionHit {
		disposition = color.GreenString(string(meta.Cache))
	}
	_, _ = fmt.Fprintf(out, "Cache: %s\n", disposition)
	if meta.UpstreamStatus != 0 {
		_, _ = fmt.Fprintf(out, "Upstream status: %d\n", meta.UpstreamStatus)
	}
}

func writeYAML(out io.Writer, value any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("yaml.Encode() > %w", err)
	}
	return enc.Close()
}

func pluralSounds(count int) string {
	if count == 1 {
		return "1 sound"
	}
	return humanize.Comma(int64(count)) + " sounds"
}
