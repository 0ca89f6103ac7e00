// Package config loads application settings from defaults, an optional
// YAML file, a .env file and AUTOBID_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/pkg/unitreg"
)

// Scraping methods
const (
	MethodHTTP    = "http"
	MethodBrowser = "browser"
)

// Config is the application configuration
type Config struct {
	Method      string            `mapstructure:"method" validate:"oneof=http browser"`
	Portal      PortalConfig      `mapstructure:"portal"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Captcha     CaptchaConfig     `mapstructure:"captcha"`
	Retry       RetryConfig       `mapstructure:"retry"`
	DB          DBConfig          `mapstructure:"db"`
	Dashboard   DashboardConfig   `mapstructure:"dashboard"`
	Log         LogConfig         `mapstructure:"log"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// PortalConfig locates the registration portal
type PortalConfig struct {
	LoginURL              string        `mapstructure:"login_url" validate:"required,url"`
	RegistrationURL       string        `mapstructure:"registration_url" validate:"required,url"`
	CourseRegistrationURL string        `mapstructure:"course_registration_url" validate:"required,url"`
	UserAgent             string        `mapstructure:"user_agent"`
	InsecureTLS           bool          `mapstructure:"insecure_tls"`
	Timeout               time.Duration `mapstructure:"timeout" validate:"gt=0"`
	CookieFile            string        `mapstructure:"cookie_file"`
}

// BrowserConfig controls the Chrome adapter
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	DialogWait time.Duration `mapstructure:"dialog_wait" validate:"gte=0"`
}

// CaptchaConfig selects how login captchas are answered.
// An empty command prompts the operator.
type CaptchaConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// RetryConfig bounds the retry loops; zero caps are unbounded
type RetryConfig struct {
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=0"`
	MaxLogins   int           `mapstructure:"max_logins" validate:"gte=0"`
	SettleDelay time.Duration `mapstructure:"settle_delay" validate:"gte=0"`
	Backoff     time.Duration `mapstructure:"backoff" validate:"gte=0"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff" validate:"gte=0"`
}

// DBConfig locates the sqlite database
type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DashboardConfig configures the web dashboard
type DashboardConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File  string `mapstructure:"file"`
}

// CredentialsConfig holds portal credentials supplied outside the database
type CredentialsConfig struct {
	StudentID string `mapstructure:"student_id"`
	Password  string `mapstructure:"password"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	portal := unitreg.DefaultConfig()
	policy := bidding.DefaultPolicy()

	v.SetDefault("method", MethodHTTP)

	v.SetDefault("portal.login_url", portal.LoginURL)
	v.SetDefault("portal.registration_url", portal.RegistrationURL)
	v.SetDefault("portal.course_registration_url", portal.CourseRegistrationURL)
	v.SetDefault("portal.user_agent", portal.UserAgent)
	v.SetDefault("portal.insecure_tls", false)
	v.SetDefault("portal.timeout", portal.Timeout)
	v.SetDefault("portal.cookie_file", "")

	v.SetDefault("browser.headless", portal.Headless)
	v.SetDefault("browser.dialog_wait", portal.DialogWait)

	v.SetDefault("captcha.command", "")
	v.SetDefault("captcha.args", []string{})

	v.SetDefault("retry.max_retries", policy.MaxPasses)
	v.SetDefault("retry.max_attempts", policy.MaxAttempts)
	v.SetDefault("retry.max_logins", policy.MaxLogins)
	v.SetDefault("retry.settle_delay", policy.SettleDelay)
	v.SetDefault("retry.backoff", policy.Backoff)
	v.SetDefault("retry.max_backoff", policy.MaxBackoff)

	v.SetDefault("db.path", "autobid.db")

	v.SetDefault("dashboard.addr", ":8080")
	v.SetDefault("dashboard.password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("credentials.student_id", "")
	v.SetDefault("credentials.password", "")
}

// Load reads the configuration. Precedence: environment > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("autobid")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("AUTOBID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.MaxBackoff < c.Retry.Backoff {
		return fmt.Errorf("invalid config: retry.max_backoff %s is below retry.backoff %s", c.Retry.MaxBackoff, c.Retry.Backoff)
	}
	return nil
}

// Policy returns the retry policy of a run
func (c *Config) Policy() bidding.RetryPolicy {
	return bidding.RetryPolicy{
		MaxPasses:   c.Retry.MaxRetries,
		MaxAttempts: c.Retry.MaxAttempts,
		MaxLogins:   c.Retry.MaxLogins,
		SettleDelay: c.Retry.SettleDelay,
		Backoff:     c.Retry.Backoff,
		MaxBackoff:  c.Retry.MaxBackoff,
	}
}

// PortalClientConfig returns the settings of the portal adapters
func (c *Config) PortalClientConfig() unitreg.Config {
	return unitreg.Config{
		LoginURL:              c.Portal.LoginURL,
		RegistrationURL:       c.Portal.RegistrationURL,
		CourseRegistrationURL: c.Portal.CourseRegistrationURL,
		UserAgent:             c.Portal.UserAgent,
		InsecureTLS:           c.Portal.InsecureTLS,
		Timeout:               c.Portal.Timeout,
		CookieFile:            c.Portal.CookieFile,
		DialogWait:            c.Browser.DialogWait,
		Headless:              c.Browser.Headless,
	}
}
