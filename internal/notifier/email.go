package notifier

import (
	"errors"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/boylston-chess/bcf-monitor/internal/report"
)

// EmailSettings configures the SMTP notifier.
type EmailSettings struct {
	To       string
	From     string
	SMTPHost string
	SMTPPort int
	Username string
	Password string
}

// Email sends the report as a multipart text+HTML message over SMTP with
// STARTTLS.
type Email struct {
	settings EmailSettings
	send     func(...*gomail.Message) error
}

// NewEmail creates an email notifier. To, Username and Password are
// required.
func NewEmail(settings EmailSettings) (*Email, error) {
	if settings.To == "" {
		return nil, errors.New("email notifier: no recipient configured")
	}
	if settings.Username == "" || settings.Password == "" {
		return nil, errors.New("email notifier: SMTP credentials not configured")
	}
	if settings.SMTPHost == "" {
		settings.SMTPHost = "smtp.gmail.com"
	}
	if settings.SMTPPort == 0 {
		settings.SMTPPort = 587
	}
	if settings.From == "" {
		settings.From = settings.Username
	}

	dialer := gomail.NewDialer(settings.SMTPHost, settings.SMTPPort, settings.Username, settings.Password)
	return &Email{settings: settings, send: dialer.DialAndSend}, nil
}

func (e *Email) Name() string { return "email" }

// Notify sends the report with the plain-text body and an HTML alternative.
func (e *Email) Notify(rep *report.Report, runDate time.Time) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.settings.From)
	m.SetHeader("To", e.settings.To)
	m.SetHeader("Subject", report.Subject(runDate))
	m.SetBody("text/plain", rep.Text)
	m.AddAlternative("text/html", rep.HTML)

	if err := e.send(m); err != nil {
		return &SendError{Notifier: e.Name(), Err: err}
	}
	return nil
}
