package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const DefaultConfigPath = "config.yaml"

var (
	ErrMissingBaseURL = errors.New("base-url is required")
	ErrInvalidBaseURL = errors.New("base-url must be an absolute http or https URL")
	ErrEmptySelector  = errors.New("selector must not be empty")
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Version           string           `yaml:"version"`
	Debug             bool             `yaml:"debug"`
	Headless          bool             `yaml:"headless"`
	BaseURL           string           `yaml:"base-url"`
	SetLanguage       bool             `yaml:"set-language"`
	KeepBrowserOpen   bool             `yaml:"keep-browser-open"`
	NavigationTimeout time.Duration    `yaml:"navigation-timeout"`
	WaitUntil         string           `yaml:"wait-until"`
	ClickRate         float64          `yaml:"click-rate"`
	PurchaseStrategy  string           `yaml:"purchase-strategy"`
	StateFile         string           `yaml:"state-file,omitempty"`
	ApiPort           string           `yaml:"api-port,omitempty"`
	Browser           AppConfigBrowser `yaml:"browser"`
	Intervals         Intervals        `yaml:"intervals"`
	Log               AppConfigLog     `yaml:"log"`
	Selectors         Selectors        `yaml:"selectors"`
}

type AppConfigBrowser struct {
	ExecPath    string   `yaml:"exec-path,omitempty"`
	Args        []string `yaml:"args"`
	UserDataDir string   `yaml:"user-data-dir,omitempty"`
	UserAgent   string   `yaml:"user-agent,omitempty"`
}

// Intervals are the tick periods of the periodic actions.
type Intervals struct {
	Click       time.Duration `yaml:"click"`
	Purchase    time.Duration `yaml:"purchase"`
	SaveState   time.Duration `yaml:"save-state"`
	TickTimeout time.Duration `yaml:"tick-timeout"`
}

type AppConfigLog struct {
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
}

// Selectors maps the logical UI roles of the game page to CSS selectors.
type Selectors struct {
	LanguageButton string `yaml:"language-button"`
	PrimaryTarget  string `yaml:"primary-target"`
	ProductClass   string `yaml:"product-class"`
	EnabledMarker  string `yaml:"enabled-marker"`
}

// Purchasable is the compound selector matching products that are both
// purchasable and currently enabled.
func (s Selectors) Purchasable() string {
	return s.ProductClass + s.EnabledMarker
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Version:           "1",
		BaseURL:           "https://orteil.dashnet.org/cookieclicker/",
		SetLanguage:       true,
		NavigationTimeout: 90 * time.Second,
		WaitUntil:         "almost-idle",
		ClickRate:         20,
		PurchaseStrategy:  "first",
		Browser: AppConfigBrowser{
			Args: []string{"--no-sandbox", "--disable-setuid-sandbox"},
		},
		Intervals: Intervals{
			Click:     100 * time.Millisecond,
			Purchase:  5 * time.Second,
			SaveState: time.Minute,
		},
		Log: AppConfigLog{
			File:       "game-bot.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Selectors: Selectors{
			LanguageButton: "#langSelect-EN",
			PrimaryTarget:  "#bigCookie",
			ProductClass:   ".product",
			EnabledMarker:  ".enabled",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. A missing file is
// created with the default values.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if errSave := cfg.Save(path); errSave != nil {
			return nil, fmt.Errorf("write default config: %w", errSave)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *AppConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the invariants the bot relies on at runtime.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	selectors := map[string]string{
		"language-button": c.Selectors.LanguageButton,
		"primary-target":  c.Selectors.PrimaryTarget,
		"product-class":   c.Selectors.ProductClass,
		"enabled-marker":  c.Selectors.EnabledMarker,
	}
	for name, value := range selectors {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("selectors.%s: %w", name, ErrEmptySelector)
		}
	}

	if c.Intervals.Click <= 0 {
		return fmt.Errorf("intervals.click must be positive, got %s", c.Intervals.Click)
	}
	if c.Intervals.Purchase <= 0 {
		return fmt.Errorf("intervals.purchase must be positive, got %s", c.Intervals.Purchase)
	}
	if c.StateFile != "" && c.Intervals.SaveState <= 0 {
		return fmt.Errorf("intervals.save-state must be positive when state-file is set, got %s", c.Intervals.SaveState)
	}
	if c.Intervals.TickTimeout < 0 || c.NavigationTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.ClickRate < 0 {
		return fmt.Errorf("click-rate must not be negative, got %v", c.ClickRate)
	}

	switch c.WaitUntil {
	case "almost-idle", "idle":
	default:
		return fmt.Errorf("unknown wait-until %q, want almost-idle or idle", c.WaitUntil)
	}

	switch c.PurchaseStrategy {
	case "first", "last":
	default:
		return fmt.Errorf("unknown purchase-strategy %q", c.PurchaseStrategy)
	}
	return nil
}
