package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"text/template"
	"time"

	"github.com/forgo/nemesis/api/internal/model"
)

// Notifier tells a user about a newly committed match.
type Notifier interface {
	MatchCreated(ctx context.Context, user, enemy *model.User, record *model.MatchRecord) error
}

// NopNotifier discards notifications
type NopNotifier struct{}

// MatchCreated does nothing
func (NopNotifier) MatchCreated(context.Context, *model.User, *model.User, *model.MatchRecord) error {
	return nil
}

// LogNotifier records what would have been sent. Used when SMTP is not configured.
type LogNotifier struct{}

// MatchCreated logs the notification
func (LogNotifier) MatchCreated(_ context.Context, user, enemy *model.User, record *model.MatchRecord) error {
	slog.Info("email not configured, would send match notification",
		"to", user.Email,
		"enemy", enemy.Username,
		"score", record.Score,
		"cycle_id", record.CycleID,
	)
	return nil
}

// SMTPNotifier emails match notifications
type SMTPNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	timeout  time.Duration
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// SMTPNotifierConfig holds configuration for the SMTP notifier
type SMTPNotifierConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
	Timeout  time.Duration
}

// NewSMTPNotifier creates an SMTP notifier. smtp.SendMail upgrades to
// STARTTLS when the server offers it.
func NewSMTPNotifier(cfg SMTPNotifierConfig) *SMTPNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &SMTPNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		timeout:  timeout,
		send:     smtp.SendMail,
	}
}

// MatchCreated sends the match email
func (n *SMTPNotifier) MatchCreated(ctx context.Context, user, enemy *model.User, record *model.MatchRecord) error {
	msg, err := buildMatchEmail(n.from, user, enemy, record)
	if err != nil {
		return fmt.Errorf("failed to build match email: %w", err)
	}

	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))
	var auth smtp.Auth
	if n.username != "" {
		auth = smtp.PlainAuth("", n.username, n.password, n.host)
	}

	// smtp.SendMail has no context; bound it with our own timeout.
	done := make(chan error, 1)
	go func() {
		done <- n.send(addr, auth, n.from, []string{user.Email}, msg)
	}()

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", user.Email, err)
		}
		slog.Info("match email sent", "to", user.Email, "match_id", record.ID)
		return nil
	case <-timer.C:
		return fmt.Errorf("sending email to %s timed out", user.Email)
	case <-ctx.Done():
		return ctx.Err()
	}
}

type matchEmailData struct {
	Username      string
	EnemyUsername string
	EnemyEmail    string
	Score         int
	Scheduled     bool
}

var matchEmailText = template.Must(template.New("text").Parse(`Hello {{.Username}}!

{{if .Scheduled}}Your monthly enemy match has been calculated!{{else}}You asked for a new enemy, and we found one.{{end}}

Your new enemy is: {{.EnemyUsername}} ({{.EnemyEmail}})
Incompatibility Score: {{.Score}}/100

The higher the score, the more incompatible you are.
`))

var matchEmailHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
  <body>
    <h2>Hello {{.Username}}!</h2>
    <p>{{if .Scheduled}}Your monthly enemy match has been calculated!{{else}}You asked for a new enemy, and we found one.{{end}}</p>
    <div style="background-color: #f0f0f0; padding: 20px; border-radius: 5px; margin: 20px 0;">
      <h3>Your New Enemy:</h3>
      <p><strong>{{.EnemyUsername}}</strong> ({{.EnemyEmail}})</p>
      <p>Incompatibility Score: <strong>{{.Score}}/100</strong></p>
    </div>
    <p>The higher the score, the more incompatible you are.</p>
  </body>
</html>
`))

// buildMatchEmail renders a multipart/alternative message with text and HTML parts.
func buildMatchEmail(from string, user, enemy *model.User, record *model.MatchRecord) ([]byte, error) {
	data := matchEmailData{
		Username:      user.Username,
		EnemyUsername: enemy.Username,
		EnemyEmail:    enemy.Email,
		Score:         record.Score,
		Scheduled:     !record.IsAdHoc(),
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		render      func(*bytes.Buffer) error
	}{
		{"text/plain; charset=utf-8", func(b *bytes.Buffer) error { return matchEmailText.Execute(b, data) }},
		{"text/html; charset=utf-8", func(b *bytes.Buffer) error { return matchEmailHTML.Execute(b, data) }},
	}
	for _, p := range parts {
		var rendered bytes.Buffer
		if err := p.render(&rendered); err != nil {
			return nil, err
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(rendered.Bytes()); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", user.Email)
	fmt.Fprintf(&msg, "Subject: You Have a New Enemy Match!\r\n")
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
