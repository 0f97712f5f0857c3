package harness

import (
	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/johnstarich/uiwatch/config"
	"github.com/johnstarich/uiwatch/notify"
	"github.com/johnstarich/uiwatch/pipeline"
	"github.com/johnstarich/uiwatch/recorder"
	"github.com/johnstarich/uiwatch/session"
	"github.com/johnstarich/uiwatch/steps"
	"go.uber.org/zap"
)

// Options customize FromConfig. Every field is optional.
type Options struct {
	Logger *zap.Logger
	// Publisher receives every report, i.e. a server.Index
	Publisher pipeline.Publisher
	// Engines replace the built-in browser engines
	Engines map[string]session.Engine
	// Send replaces SMTP delivery
	Send notify.SendFunc
	// Recorder replaces the screen recorder command
	Recorder recorder.CommandFunc
	// BrowserDebug logs browser driver traffic at debug level
	BrowserDebug bool
}

// FromConfig wires a Harness from loaded configuration
func FromConfig(cfg *config.Config, opts Options) *Harness {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := artifacts.NewStore(cfg.ArtifactsDir)
	log := steps.New()

	sessions := session.NewRegistry(session.Config{
		Browser:      cfg.Browser,
		BrowserPath:  cfg.BrowserPath,
		Headless:     cfg.Headless,
		Debug:        opts.BrowserDebug,
		ImplicitWait: cfg.ImplicitWait,
		ExplicitWait: cfg.ExplicitWait,
		Engines:      opts.Engines,
		Steps:        log,
		Logger:       logger.Named("session"),
	})
	command := opts.Recorder
	if command == nil {
		command = recorder.FFmpeg(cfg.RecorderBinary)
	}
	rec := recorder.New(recorder.Config{
		Store:       store,
		Command:     command,
		StopTimeout: cfg.RecorderStopTimeout,
		Logger:      logger.Named("recorder"),
	})
	if cfg.IsProduction() && !cfg.HasSMTPCredentials() {
		logger.Warn("Failure notifications are disabled, SMTP credentials are not set",
			zap.Strings("recipients", cfg.NotificationEmails))
	}
	mailer := notify.NewMailer(notify.Config{
		Production: cfg.IsProduction(),
		Recipients: cfg.NotificationEmails,
		User:       cfg.SMTPUser,
		Password:   cfg.SMTPPassword,
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Send:       opts.Send,
		Logger:     logger.Named("notify"),
	})
	p := pipeline.New(pipeline.Config{
		Env:         cfg.Env,
		Screenshots: sessions,
		Recorder:    rec,
		Store:       store,
		Steps:       log,
		Sink:        mailer,
		Publisher:   opts.Publisher,
		Logger:      logger.Named("pipeline"),
	})
	return New(Config{
		BaseURL:  cfg.BaseURL,
		Sessions: sessions,
		Recorder: rec,
		Pipeline: p,
		Steps:    log,
		Logger:   logger,
	})
}
