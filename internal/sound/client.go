package sound

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

//go:generate mockgen -source=client.go -destination=../mocks/sound/mock_fetcher.go -package=mock_sound Fetcher

// Fetcher resolves a sound record from the Sounds API.
type Fetcher interface {
	Fetch(ctx context.Context, id int64) (Record, error)
}

// APIConfig holds the Sounds API settings. All three values are required.
type APIConfig struct {
	URL        string
	Key        string
	ClientName string
}

// Complete reports whether every setting is present.
func (c APIConfig) Complete() bool {
	return c.URL != "" && c.Key != "" && c.ClientName != ""
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// SoundURL returns the lookup URL of a sound. Hosts without a scheme are
// reached over https.
func (c APIConfig) SoundURL(id int64) string {
	host := c.URL
	if !schemePattern.MatchString(host) {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/") + "/api/sounds/" + strconv.FormatInt(id, 10)
}

const requestTimeout = 3 * time.Second

// Log categories of upstream failures.
const (
	categoryConfig  = "CONFIG"
	categoryNetwork = "NETWORK"
	categoryParse   = "PARSE"
	categoryAuth    = "AUTH"
	categoryHTTP    = "HTTP"
)

// Client fetches sound records over HTTPS. The API key and client name
// are only ever sent from the server.
type Client struct {
	config     APIConfig
	httpClient *resty.Client
	logger     *slog.Logger
}

var _ Fetcher = (*Client)(nil)

type ClientOption func(*Client)

// WithHTTPClient makes the client send requests through a copy of hc. The
// copy gets the fixed request timeout; hc itself is left untouched.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		copied := *hc
		c.httpClient = resty.NewWithClient(&copied)
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(config APIConfig, opts ...ClientOption) *Client {
	client := &Client{
		config:     config,
		httpClient: resty.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.httpClient.SetTimeout(requestTimeout)
	return client
}

// Fetch looks a sound up upstream. Every failure is returned as *Error.
func (c *Client) Fetch(ctx context.Context, id int64) (Record, error) {
	if !c.config.Complete() {
		c.log(ctx, slog.LevelError, categoryConfig, id, "Missing API configuration")
		return nil, &Error{Kind: KindConfig, Message: "missing API configuration"}
	}

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Key", c.config.Key).
		SetHeader("X-Client-Name", c.config.ClientName).
		Get(c.config.SoundURL(id))
	if err != nil {
		c.log(ctx, slog.LevelWarn, categoryNetwork, id, "Error contacting Sounds API", slog.Any("error", err))
		return nil, &Error{Kind: KindAPI, Message: "error contacting Sounds API", Err: err}
	}

	status := res.StatusCode()
	switch status {
	case http.StatusOK:
		record, err := decodeRecord(res.Body())
		if err != nil {
			c.log(ctx, slog.LevelWarn, categoryParse, id, "Invalid JSON from upstream", slog.Any("error", err))
			return nil, &Error{Kind: KindAPI, Message: "invalid JSON from upstream", Status: status, Err: err}
		}
		return record, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log(ctx, slog.LevelError, categoryAuth, id, "Auth failure contacting Sounds API", slog.Int("status", status))
		return nil, &Error{Kind: KindUnauthorized, Message: "unauthorized contacting Sounds API", Status: status}
	default:
		c.log(ctx, slog.LevelWarn, categoryHTTP, id, "Upstream returned an error status", slog.Int("status", status))
		return nil, &Error{Kind: KindUpstream, Message: "upstream returned error", Status: status}
	}
}

func (c *Client) log(ctx context.Context, level slog.Level, category string, id int64, msg string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("category", category),
		slog.Int64("sound_id", id),
	}, attrs...)
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}
