package config

import (
	"net"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // kiosks may ship without a zoneinfo database

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	PrinterSpool    = "spool"
	PrinterTelegram = "telegram"
	PrinterNetwork  = "network"
)

type Config struct {
	Outlet       OutletConfig       `envconfig:"OUTLET"`
	Backend      BackendConfig      `envconfig:"BACKEND"`
	Connectivity ConnectivityConfig `envconfig:"CONNECTIVITY"`
	Printer      PrinterConfig      `envconfig:"PRINTER"`
	Telegram     TelegramConfig     `envconfig:"TELEGRAM"`
	HTTP         HTTPConfig         `envconfig:"HTTP"`
	App          AppConfig          `envconfig:"APP"`
	LogLevel     string             `envconfig:"LOG_LEVEL" default:"info"`
}

// Nested fields stay untagged so no section reads a bare variable such as
// ADDR or TIMEOUT.
type OutletConfig struct {
	ID       int64  `default:"4"`
	Name     string `default:"Walk-in Counter"`
	Timezone string `default:"Asia/Kolkata"`
	Footer   string `default:"Thank you for choosing us"`
	// Mobile is recorded on every walk-in order; there is no customer account.
	Mobile string `default:"0000000000"`
}

type BackendConfig struct {
	BaseURL        string        `split_words:"true" default:"http://localhost:3100/api"`
	CategoriesPath string        `split_words:"true" default:"/categories/%d"`
	ItemsPath      string        `split_words:"true" default:"/items/%d"`
	OrdersPath     string        `split_words:"true" default:"/orders"`
	Timeout        time.Duration `default:"15s"`
}

type ConnectivityConfig struct {
	ProbeAddr string        `split_words:"true"`
	Interval  time.Duration `default:"5s"`
	Timeout   time.Duration `default:"2s"`
}

type PrinterConfig struct {
	Kind     string `default:"spool"`
	SpoolDir string `split_words:"true" default:"receipts"`
	Addr     string
	ChatID   int64  `split_words:"true"`
	Token    string // separate bot used only to deliver bills
}

type TelegramConfig struct {
	Token          string
	OperatorChatID int64 `split_words:"true"`
}

type HTTPConfig struct {
	Addr string `default:":8080"`
}

type AppConfig struct {
	Env string `default:"development"`
}

// legacyTokenVar is the bot token variable older deployments set.
const legacyTokenVar = "TOKEN"

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	if cfg.Telegram.Token == "" {
		if token, ok := os.LookupEnv(legacyTokenVar); ok {
			cfg.Telegram.Token = token
		}
	}
	if cfg.Connectivity.ProbeAddr == "" {
		addr, err := probeAddrFromURL(cfg.Backend.BaseURL)
		if err != nil {
			return nil, err
		}
		cfg.Connectivity.ProbeAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Outlet.ID <= 0 {
		return errors.Errorf("OUTLET_ID must be positive, got %d", c.Outlet.ID)
	}
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return errors.Wrap(err, "BACKEND_BASE_URL")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Printer.Kind {
	case PrinterSpool:
	case PrinterTelegram:
		if c.Printer.ChatID == 0 {
			return errors.New("PRINTER_CHAT_ID is required for the telegram printer")
		}
		if c.Printer.Token == "" && c.Telegram.Token == "" {
			return errors.New("PRINTER_TOKEN or TELEGRAM_TOKEN is required for the telegram printer")
		}
	case PrinterNetwork:
		if c.Printer.Addr == "" {
			return errors.New("PRINTER_ADDR is required for the network printer")
		}
	default:
		return errors.Errorf("unknown PRINTER_KIND %q", c.Printer.Kind)
	}
	return nil
}

// Location is the outlet's time zone, used for receipt timestamps.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Outlet.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "OUTLET_TIMEZONE %q", c.Outlet.Timezone)
	}
	return loc, nil
}

// IsProduction switches the logger to the JSON encoder.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func probeAddrFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "BACKEND_BASE_URL")
	}
	if u.Host == "" {
		return "", errors.Errorf("BACKEND_BASE_URL %q has no host", raw)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "80"
	if u.Scheme == "https" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
