package config

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// APIConfig holds the Sounds API settings. Missing values are not a load
// error; lookups fail with a configuration error instead.
type APIConfig struct {
	URL        string `mapstructure:"url" validate:"omitempty,apihost"`
	Key        string `mapstructure:"key"`
	ClientName string `mapstructure:"client_name"`
}

// Configured reports whether every API setting is present.
func (c APIConfig) Configured() bool {
	return c.URL != "" && c.Key != "" && c.ClientName != ""
}

const (
	CacheDriverMySQL  = "mysql"
	CacheDriverMemory = "memory"
)

type CacheConfig struct {
	Driver    string `mapstructure:"driver" validate:"oneof=mysql memory"`
	ListLimit int    `mapstructure:"list_limit" validate:"min=1"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port" validate:"min=1,max=65535"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
	ConnectAttempts uint              `mapstructure:"connect_attempts"`
}

// AdminConfig holds the cache console credentials. With no password set,
// every mutating console action is refused.
type AdminConfig struct {
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NonceSecret string `mapstructure:"nonce_secret"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bitesize")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("api.url", "")
	v.SetDefault("api.client_name", "")
	v.SetDefault("cache.driver", CacheDriverMySQL)
	v.SetDefault("cache.list_limit", 20)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "bitesize")
	v.SetDefault("database.username", "bitesize")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("admin.username", "admin")

	bindings := []struct {
		key string
		env string
	}{
		{key: "api.url", env: "BITESIZE_API_URL"},
		{key: "api.client_name", env: "BITESIZE_API_CLIENT_NAME"},
		{key: "cache.driver", env: "BITESIZE_CACHE_DRIVER"},
		// Secrets are expected from the environment, which wins over the file.
		{key: "api.key", env: "BITESIZE_API_KEY"},
		{key: "database.password", env: "DB_PASSWORD"},
		{key: "admin.password", env: "BITESIZE_ADMIN_PASSWORD"},
		{key: "admin.nonce_secret", env: "BITESIZE_NONCE_SECRET"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", b.env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, translateError(e, loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
