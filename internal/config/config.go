package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Transports the daemon can capture from.
const (
	TransportWhatsApp = "whatsapp"
	TransportTelegram = "telegram"
)

// Config represents <data_dir>/config.toml.
type Config struct {
	Transport       string   `toml:"transport"`
	LogLevel        string   `toml:"log_level"`
	QueueSize       int      `toml:"queue_size"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`

	Telegram TelegramConfig `toml:"telegram"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	HTTP     HTTPConfig     `toml:"http"`
	Redis    RedisConfig    `toml:"redis"`
	NATS     NATSConfig     `toml:"nats"`
}

// TelegramConfig configures the Bot API transport.
type TelegramConfig struct {
	BotToken    string `toml:"bot_token"`
	PollTimeout int    `toml:"poll_timeout"`
}

// WhatsAppConfig configures the whatsmeow transport.
type WhatsAppConfig struct {
	DeviceName string `toml:"device_name"`
}

// HTTPConfig configures the read API. An empty Addr disables it.
type HTTPConfig struct {
	Addr      string `toml:"addr"`
	JWTSecret string `toml:"jwt_secret"`
}

// RedisConfig enables publishing new messages to a Redis channel.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

// NATSConfig enables publishing new messages to a NATS subject.
type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Transport:       TransportWhatsApp,
		LogLevel:        "info",
		QueueSize:       256,
		ShutdownTimeout: Duration{10 * time.Second},
		Telegram:        TelegramConfig{PollTimeout: 30},
		WhatsApp:        WhatsAppConfig{DeviceName: "autoreader"},
		HTTP:            HTTPConfig{Addr: "127.0.0.1:8765"},
		Redis:           RedisConfig{Channel: "autoreader:messages"},
		NATS:            NATSConfig{Subject: "autoreader.messages"},
	}
}

// Load reads config from the given path on top of Default().
// Returns an error if the file is missing or invalid TOML.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective config: defaults, then the TOML file at
// path if it exists, then the dotenv file at envPath if it exists, then
// process environment overrides. The result is validated.
func Resolve(path, envPath string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// godotenv never overrides variables already set in the environment.
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", filepath.Base(envPath), err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("AUTOREADER_TRANSPORT", &c.Transport)
	setString("AUTOREADER_LOG_LEVEL", &c.LogLevel)
	setString("AUTOREADER_HTTP_ADDR", &c.HTTP.Addr)
	setString("AUTOREADER_JWT_SECRET", &c.HTTP.JWTSecret)
	setString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("NATS_URL", &c.NATS.URL)

	if v, ok := os.LookupEnv("AUTOREADER_QUEUE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUTOREADER_QUEUE_SIZE: %w", err)
		}
		c.QueueSize = n
	}
	return nil
}

// Validate checks the fields the daemon cannot start without.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportWhatsApp:
	case TransportTelegram:
		if c.Telegram.BotToken == "" {
			return errors.New("telegram transport requires telegram.bot_token or TELEGRAM_BOT_TOKEN")
		}
	default:
		return fmt.Errorf("unknown transport %q: want %q or %q", c.Transport, TransportWhatsApp, TransportTelegram)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.ShutdownTimeout.Duration <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
