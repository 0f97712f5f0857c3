package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnstarich/uiwatch/config"
	"github.com/johnstarich/uiwatch/harness"
	"github.com/johnstarich/uiwatch/session"
	"github.com/johnstarich/uiwatch/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"
)

func TestConfigCommandRedactsPassword(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "uiwatch.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
base_url = "http://localhost/login"
browser = "firefox"
implicit_wait_seconds = 5
explicit_wait_seconds = 10
env = "qa"
smtp_password = "app-password"
`), 0600))

	var output bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"config", "--config", configFile})
	require.NoError(t, cmd.Execute())

	assert.NotContains(t, output.String(), "app-password")
	var printed map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &printed))
	assert.Equal(t, "http://localhost/login", printed["base_url"])
	assert.Equal(t, "firefox", printed["browser"])
	assert.Nil(t, printed["smtp_password"])
}

func TestConfigCommandReveal(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "uiwatch.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
base_url = "http://localhost/login"
browser = "chrome"
implicit_wait_seconds = 5
explicit_wait_seconds = 10
env = "prod"
smtp_password = "app-password"
`), 0600))

	var output bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"config", "--reveal", "--config", configFile})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, output.String(), `"smtp_password": "app-password"`)
}

func TestConfigCommandInvalid(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"config", "--config", filepath.Join(os.TempDir(), "uiwatch-does-not-exist.toml")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid configuration")
}

func newCheckHarness(t *testing.T, engine *sessiontest.Engine) (*harness.Harness, *[]*gomail.Message) {
	t.Helper()
	tmpDir := t.TempDir()

	var sent []*gomail.Message
	cfg := &config.Config{
		BaseURL:            "http://localhost/",
		Browser:            "chrome",
		ImplicitWait:       time.Second,
		ExplicitWait:       50 * time.Millisecond,
		Env:                "qa",
		NotificationEmails: []string{},
		ArtifactsDir:       tmpDir,
		RecorderBinary:     "uiwatch-recorder-does-not-exist",
	}
	h := harness.FromConfig(cfg, harness.Options{
		Logger:  zaptest.NewLogger(t),
		Engines: map[string]session.Engine{"chrome": engine},
		Send: func(m *gomail.Message) error {
			sent = append(sent, m)
			return nil
		},
	})
	return h, &sent
}

func TestRunCheckPasses(t *testing.T) {
	engine := &sessiontest.Engine{}
	h, _ := newCheckHarness(t, engine)

	assert.True(t, runCheck(h, "check", "main", zaptest.NewLogger(t)))
	pages := engine.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, "http://localhost/", pages[0].URL())
	assert.Contains(t, pages[0].Calls(), "WaitVisible css=main")
	assert.True(t, pages[0].Closed())
}

func TestRunCheckFails(t *testing.T) {
	engine := &sessiontest.Engine{
		Setup: func(p *sessiontest.Page) {
			p.Hidden = []string{"css=main"}
			p.Image = sessiontest.PNG
		},
	}
	h, sent := newCheckHarness(t, engine)

	assert.False(t, runCheck(h, "check", "main", zaptest.NewLogger(t)))
	pages := engine.Pages()
	require.Len(t, pages, 1)
	assert.True(t, pages[0].Closed())
	assert.Empty(t, *sent, "non-production checks never send mail")
}

func TestRunCheckStartFails(t *testing.T) {
	engine := &sessiontest.Engine{StartErr: assert.AnError}
	h, _ := newCheckHarness(t, engine)

	assert.False(t, runCheck(h, "check", "main", zaptest.NewLogger(t)))
}
