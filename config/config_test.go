package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnstarich/uiwatch/errors"
	"github.com/johnstarich/uiwatch/redactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "uiwatch.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func env(values map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

const fullConfig = `
base_url = "https://example.com/login"
browser = "Firefox"
implicit_wait_seconds = 10
explicit_wait_seconds = 15
env = "prod"
smtp_user = "robot@example.com"
smtp_password = "app-password"
notification_emails = " qa@example.com, ,dev@example.com "
recorder_stop_timeout = "5s"
headless = true
`

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, fullConfig)

	config, err := load(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		BaseURL:             "https://example.com/login",
		Browser:             "firefox",
		Headless:            true,
		ImplicitWait:        10 * time.Second,
		ExplicitWait:        15 * time.Second,
		Env:                 "prod",
		SMTPUser:            "robot@example.com",
		SMTPPassword:        redactor.String("app-password"),
		SMTPHost:            "smtp.gmail.com",
		SMTPPort:            587,
		NotificationEmails:  []string{"qa@example.com", "dev@example.com"},
		ArtifactsDir:        "artifacts",
		RecorderBinary:      "ffmpeg",
		RecorderStopTimeout: 5 * time.Second,
	}, config)
	assert.True(t, config.IsProduction())
	assert.True(t, config.HasSMTPCredentials())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, fullConfig)

	config, err := load(path, env(map[string]string{
		"UIWATCH_ENV":                 "staging",
		"UIWATCH_BROWSER":             "edge",
		"UIWATCH_IMPLICIT_WAIT":       "3",
		"UIWATCH_NOTIFICATION_EMAILS": "",
		"UIWATCH_SMTP_PORT":           "2525",
		"UIWATCH_HEADLESS":            "false",
	}))
	require.NoError(t, err)
	assert.Equal(t, "staging", config.Env)
	assert.False(t, config.IsProduction())
	assert.Equal(t, "edge", config.Browser)
	assert.Equal(t, 3*time.Second, config.ImplicitWait)
	assert.Equal(t, 15*time.Second, config.ExplicitWait)
	assert.Equal(t, []string{}, config.NotificationEmails)
	assert.Equal(t, 2525, config.SMTPPort)
	assert.False(t, config.Headless)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())

	config, err := load("", env(map[string]string{
		"UIWATCH_BASE_URL":      "http://localhost:8080",
		"UIWATCH_BROWSER":       "chrome",
		"UIWATCH_IMPLICIT_WAIT": "0",
		"UIWATCH_EXPLICIT_WAIT": "5",
		"UIWATCH_ENV":           "PROD",
	}))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, time.Duration(0), config.ImplicitWait)
	assert.True(t, config.IsProduction(), "environment match is case-insensitive")
	assert.False(t, config.HasSMTPCredentials())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := load(filepath.Join(os.TempDir(), "no-such-uiwatch.toml"), env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, `base_url = `)
	_, err := load(path, env(nil))
	assert.Error(t, err)
}

func TestLoadReportsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
browser = "chrome"
explicit_wait_seconds = -1
recorder_stop_timeout = "soon"
`)
	_, err := load(path, env(map[string]string{
		"UIWATCH_IMPLICIT_WAIT": "ten",
	}))
	require.Error(t, err)
	errs, ok := err.(errors.Errors)
	require.True(t, ok, "expected every problem to be reported")
	assert.EqualError(t, errs, `Invalid integer for UIWATCH_IMPLICIT_WAIT: "ten"
Missing required config key: base_url
Missing required config key: implicit_wait_seconds
Config key explicit_wait_seconds must not be negative: -1
Missing required config key: env
Invalid recorder_stop_timeout: "soon"`)
}

func TestParseRecipients(t *testing.T) {
	for _, tc := range []struct {
		description string
		list        string
		expect      []string
	}{
		{description: "empty", list: "", expect: []string{}},
		{description: "blanks only", list: " , ,", expect: []string{}},
		{description: "one", list: "qa@example.com", expect: []string{"qa@example.com"}},
		{description: "trims and drops empties", list: "a@b.com, ,c@d.com ", expect: []string{"a@b.com", "c@d.com"}},
	} {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expect, ParseRecipients(tc.list))
		})
	}
}

func TestPasswordNotMarshaled(t *testing.T) {
	config := &Config{SMTPPassword: "app-password"}
	data, err := json.Marshal(config)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "app-password")
}
