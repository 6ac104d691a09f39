package monitor

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig configures email alerts.
type SMTPConfig struct {
	Addr     string // host:port
	From     string
	To       string
	Username string
	Password string
}

// Mailer sends alerts by email. It satisfies Notifier.
type Mailer struct {
	cfg SMTPConfig

	// send is smtp.SendMail; replaced in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewMailer returns a Mailer, or nil when cfg lacks an address or
// recipient so callers fall back to log-only alerts.
func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.Addr == "" || cfg.To == "" {
		return nil
	}
	if cfg.From == "" {
		cfg.From = "etl-pipeline@localhost"
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Notify sends one alert email.
func (m *Mailer) Notify(subject, message string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" {
		host := m.cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	}
	to := strings.Split(m.cfg.To, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}
	if err := m.send(m.cfg.Addr, auth, m.cfg.From, to, m.message(subject, message, to)); err != nil {
		return fmt.Errorf("monitor: smtp %s: %w", m.cfg.Addr, err)
	}
	return nil
}

func (m *Mailer) message(subject, body string, to []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: ETL Pipeline Alert: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
