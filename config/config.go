// Package config loads harness settings from a TOML file with UIWATCH_* environment overrides
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/johnstarich/uiwatch/errors"
	"github.com/johnstarich/uiwatch/redactor"
	pkgErrors "github.com/pkg/errors"
)

const (
	// DefaultFile is loaded when no config file is named
	DefaultFile = "uiwatch.toml"

	defaultSMTPHost            = "smtp.gmail.com"
	defaultSMTPPort            = 587
	defaultArtifactsDir        = "artifacts"
	defaultRecorderBinary      = "ffmpeg"
	defaultRecorderStopTimeout = 10 * time.Second

	productionEnv = "prod"
	envPrefix     = "UIWATCH_"
)

// Config is the harness configuration. Build it once at startup and pass it down.
type Config struct {
	BaseURL             string          `json:"base_url"`
	Browser             string          `json:"browser"`
	BrowserPath         string          `json:"browser_path,omitempty"`
	Headless            bool            `json:"headless"`
	ImplicitWait        time.Duration   `json:"implicit_wait"`
	ExplicitWait        time.Duration   `json:"explicit_wait"`
	Env                 string          `json:"env"`
	SMTPUser            string          `json:"smtp_user,omitempty"`
	SMTPPassword        redactor.String `json:"smtp_password,omitempty"`
	SMTPHost            string          `json:"smtp_host"`
	SMTPPort            int             `json:"smtp_port"`
	NotificationEmails  []string        `json:"notification_emails"`
	ArtifactsDir        string          `json:"artifacts_dir"`
	RecorderBinary      string          `json:"recorder_binary"`
	RecorderStopTimeout time.Duration   `json:"recorder_stop_timeout"`
}

type fileConfig struct {
	BaseURL             *string `toml:"base_url"`
	Browser             *string `toml:"browser"`
	BrowserPath         *string `toml:"browser_path"`
	Headless            *bool   `toml:"headless"`
	ImplicitWaitSeconds *int    `toml:"implicit_wait_seconds"`
	ExplicitWaitSeconds *int    `toml:"explicit_wait_seconds"`
	Env                 *string `toml:"env"`
	SMTPUser            *string `toml:"smtp_user"`
	SMTPPassword        *string `toml:"smtp_password"`
	SMTPHost            *string `toml:"smtp_host"`
	SMTPPort            *int    `toml:"smtp_port"`
	NotificationEmails  *string `toml:"notification_emails"`
	ArtifactsDir        *string `toml:"artifacts_dir"`
	RecorderBinary      *string `toml:"recorder_binary"`
	RecorderStopTimeout *string `toml:"recorder_stop_timeout"`
}

// LookupEnv returns an environment variable's value and whether it is set, like os.LookupEnv
type LookupEnv func(key string) (string, bool)

// Load reads the TOML file at 'path', then applies UIWATCH_* environment overrides.
// A missing file is only an error when 'path' is set, otherwise the environment alone may configure everything.
// Every missing or invalid key is reported at once.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookupEnv LookupEnv) (*Config, error) {
	var file fileConfig
	explicitPath := path != ""
	if !explicitPath {
		path = DefaultFile
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if explicitPath || !os.IsNotExist(pkgErrors.Cause(err)) {
			return nil, pkgErrors.Wrapf(err, "Failed to read config file '%s'", path)
		}
	}

	var errs errors.Errors
	overlayEnv(&file, lookupEnv, &errs)
	config := defaults()
	apply(&config, file, &errs)
	return &config, errs.ErrOrNil()
}

func defaults() Config {
	return Config{
		SMTPHost:            defaultSMTPHost,
		SMTPPort:            defaultSMTPPort,
		NotificationEmails:  []string{},
		ArtifactsDir:        defaultArtifactsDir,
		RecorderBinary:      defaultRecorderBinary,
		RecorderStopTimeout: defaultRecorderStopTimeout,
	}
}

func overlayEnv(file *fileConfig, lookupEnv LookupEnv, errs *errors.Errors) {
	envString := func(name string, dest **string) {
		if value, ok := lookupEnv(envPrefix + name); ok {
			*dest = &value
		}
	}
	envInt := func(name string, dest **int) {
		if value, ok := lookupEnv(envPrefix + name); ok {
			i, err := strconv.Atoi(strings.TrimSpace(value))
			if !errs.ErrIf(err != nil, "Invalid integer for %s%s: %q", envPrefix, name, value) {
				*dest = &i
			}
		}
	}
	envString("BASE_URL", &file.BaseURL)
	envString("BROWSER", &file.Browser)
	envString("BROWSER_PATH", &file.BrowserPath)
	envInt("IMPLICIT_WAIT", &file.ImplicitWaitSeconds)
	envInt("EXPLICIT_WAIT", &file.ExplicitWaitSeconds)
	envString("ENV", &file.Env)
	envString("SMTP_USER", &file.SMTPUser)
	envString("SMTP_PASSWORD", &file.SMTPPassword)
	envString("SMTP_HOST", &file.SMTPHost)
	envInt("SMTP_PORT", &file.SMTPPort)
	envString("NOTIFICATION_EMAILS", &file.NotificationEmails)
	envString("ARTIFACTS_DIR", &file.ArtifactsDir)
	envString("RECORDER", &file.RecorderBinary)
	envString("RECORDER_STOP_TIMEOUT", &file.RecorderStopTimeout)
	if value, ok := lookupEnv(envPrefix + "HEADLESS"); ok {
		headless, err := strconv.ParseBool(strings.TrimSpace(value))
		if !errs.ErrIf(err != nil, "Invalid boolean for %sHEADLESS: %q", envPrefix, value) {
			file.Headless = &headless
		}
	}
}

func required(errs *errors.Errors, key string, value *string) string {
	if errs.ErrIf(value == nil || strings.TrimSpace(*value) == "", "Missing required config key: %s", key) {
		return ""
	}
	return strings.TrimSpace(*value)
}

func seconds(errs *errors.Errors, key string, value *int) time.Duration {
	if errs.ErrIf(value == nil, "Missing required config key: %s", key) {
		return 0
	}
	if errs.ErrIf(*value < 0, "Config key %s must not be negative: %d", key, *value) {
		return 0
	}
	return time.Duration(*value) * time.Second
}

func apply(config *Config, file fileConfig, errs *errors.Errors) {
	config.BaseURL = required(errs, "base_url", file.BaseURL)
	config.Browser = strings.ToLower(required(errs, "browser", file.Browser))
	config.ImplicitWait = seconds(errs, "implicit_wait_seconds", file.ImplicitWaitSeconds)
	config.ExplicitWait = seconds(errs, "explicit_wait_seconds", file.ExplicitWaitSeconds)
	config.Env = required(errs, "env", file.Env)

	if file.BrowserPath != nil {
		config.BrowserPath = strings.TrimSpace(*file.BrowserPath)
	}
	if file.Headless != nil {
		config.Headless = *file.Headless
	}
	if file.SMTPUser != nil {
		config.SMTPUser = strings.TrimSpace(*file.SMTPUser)
	}
	if file.SMTPPassword != nil {
		config.SMTPPassword = redactor.String(*file.SMTPPassword)
	}
	if file.SMTPHost != nil && strings.TrimSpace(*file.SMTPHost) != "" {
		config.SMTPHost = strings.TrimSpace(*file.SMTPHost)
	}
	if file.SMTPPort != nil {
		if !errs.ErrIf(*file.SMTPPort <= 0 || *file.SMTPPort > 65535, "Invalid smtp_port: %d", *file.SMTPPort) {
			config.SMTPPort = *file.SMTPPort
		}
	}
	if file.NotificationEmails != nil {
		config.NotificationEmails = ParseRecipients(*file.NotificationEmails)
	}
	if file.ArtifactsDir != nil && strings.TrimSpace(*file.ArtifactsDir) != "" {
		config.ArtifactsDir = strings.TrimSpace(*file.ArtifactsDir)
	}
	if file.RecorderBinary != nil && strings.TrimSpace(*file.RecorderBinary) != "" {
		config.RecorderBinary = strings.TrimSpace(*file.RecorderBinary)
	}
	if file.RecorderStopTimeout != nil {
		timeout, err := time.ParseDuration(strings.TrimSpace(*file.RecorderStopTimeout))
		if !errs.ErrIf(err != nil || timeout <= 0, "Invalid recorder_stop_timeout: %q", *file.RecorderStopTimeout) {
			config.RecorderStopTimeout = timeout
		}
	}
}

// ParseRecipients splits a comma-separated address list, dropping blank entries
func ParseRecipients(list string) []string {
	recipients := []string{}
	for _, address := range strings.Split(list, ",") {
		if address = strings.TrimSpace(address); address != "" {
			recipients = append(recipients, address)
		}
	}
	return recipients
}

// IsProduction returns true when notifications should really be sent
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), productionEnv)
}

// HasSMTPCredentials returns true when both the SMTP user and password are set
func (c *Config) HasSMTPCredentials() bool {
	return c.SMTPUser != "" && strings.TrimSpace(c.SMTPPassword.Reveal()) != ""
}
