// Package notify delivers failure notifications by email
package notify

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/johnstarich/uiwatch/redactor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

const (
	// ScreenshotContentID identifies the inline screenshot. HTML bodies reference it as "cid:screenshot".
	ScreenshotContentID = "<screenshot>"

	defaultHost = "smtp.gmail.com"
	defaultPort = 587
)

// DefaultLimit caps outbound mail at one message every 2 seconds, with bursts of 5
var DefaultLimit = rate.Every(2 * time.Second)

const defaultBurst = 5

// Message is one failure notification
type Message struct {
	Subject string
	HTML    string
	// InlineImage is a PNG attached inline when not empty
	InlineImage []byte
}

// Status describes what happened to a Message
type Status string

// Delivery statuses
const (
	Sent    Status = "sent"
	Skipped Status = "skipped"
	Failed  Status = "failed"
)

// Result is the outcome of one delivery. Reason is set when the message was not sent.
type Result struct {
	Status     Status
	Recipients []string
	Reason     error
}

// Sink delivers notifications. Delivery problems are reported in the Result, never as a test failure.
type Sink interface {
	Deliver(ctx context.Context, msg Message) Result
}

// SendFunc transmits a fully built message
type SendFunc func(*gomail.Message) error

// Config passes options for a new Mailer
type Config struct {
	// Production must be true for anything to be sent
	Production bool
	Recipients []string
	User       string
	Password   redactor.String
	Host       string
	Port       int
	// Limiter throttles outbound mail. Defaults to DefaultLimit.
	Limiter *rate.Limiter
	// Send overrides SMTP delivery
	Send   SendFunc
	Logger *zap.Logger
}

// Mailer sends notifications over SMTP with STARTTLS
type Mailer struct {
	config  Config
	limiter *rate.Limiter
	send    SendFunc
	logger  *zap.Logger
}

var (
	errNotProduction = errors.New("Not a production environment")
	errNoRecipients  = errors.New("No recipients configured")
	errNoCredentials = errors.New("SMTP user or password not configured")
)

// NewMailer creates a Mailer
func NewMailer(config Config) *Mailer {
	if config.Host == "" {
		config.Host = defaultHost
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Limiter == nil {
		config.Limiter = rate.NewLimiter(DefaultLimit, defaultBurst)
	}
	send := config.Send
	if send == nil {
		dialer := gomail.NewDialer(config.Host, config.Port, config.User, config.Password.Reveal())
		send = func(m *gomail.Message) error {
			return dialer.DialAndSend(m)
		}
	}
	return &Mailer{
		config:  config,
		limiter: config.Limiter,
		send:    send,
		logger:  config.Logger,
	}
}

// Deliver sends 'msg' to every configured recipient.
// Outside production, without recipients, or without credentials, it logs what it would have done and skips.
func (m *Mailer) Deliver(ctx context.Context, msg Message) Result {
	recipients := m.config.Recipients
	logger := m.logger.With(zap.String("subject", msg.Subject))
	result := Result{Recipients: recipients}

	switch {
	case !m.config.Production:
		logger.Info("Not a production environment, skipping email",
			zap.String("would_send_to", strings.Join(recipients, ", ")))
		return skip(result, errNotProduction)
	case len(recipients) == 0:
		logger.Info("No recipients configured, skipping email")
		return skip(result, errNoRecipients)
	case strings.TrimSpace(m.config.User) == "" || strings.TrimSpace(m.config.Password.Reveal()) == "":
		logger.Info("SMTP user or password not configured, skipping email")
		return skip(result, errNoCredentials)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return m.fail(result, logger, errors.Wrap(err, "Rate limit wait canceled"))
	}
	if err := m.send(m.build(msg)); err != nil {
		return m.fail(result, logger, errors.Wrap(err, "Failed to send email"))
	}
	logger.Info("Failure email sent", zap.Strings("recipients", recipients))
	result.Status = Sent
	return result
}

func skip(result Result, reason error) Result {
	result.Status = Skipped
	result.Reason = reason
	return result
}

func (m *Mailer) fail(result Result, logger *zap.Logger, err error) Result {
	logger.Error("Failed to deliver failure email", zap.Error(err))
	result.Status = Failed
	result.Reason = err
	return result
}

// build assembles a multipart/related message: an HTML body plus the inline screenshot
func (m *Mailer) build(msg Message) *gomail.Message {
	message := gomail.NewMessage()
	message.SetHeader("From", m.config.User)
	message.SetHeader("To", m.config.Recipients...)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/html", msg.HTML)
	if len(msg.InlineImage) > 0 {
		image := msg.InlineImage
		message.Embed("screenshot.png",
			gomail.SetHeader(map[string][]string{
				"Content-ID":   {ScreenshotContentID},
				"Content-Type": {"image/png"},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(image))
				return err
			}),
		)
	}
	return message
}
