package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/suPer8Hu/ai-chat-backend/internal/models"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Mail is one outgoing message. Bcc recipients get the mail but are not listed
// in the headers.
type Mail struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	HTML    bool
}

// SendText sends a plain text mail to a single recipient.
func SendText(cfg SMTPConfig, to, subject, body string) error {
	return Send(context.Background(), cfg, Mail{To: []string{to}, Subject: subject, Body: body})
}

func Send(ctx context.Context, cfg SMTPConfig, m Mail) error {
	if len(m.To) == 0 {
		return errors.New("email: no recipients")
	}
	if cfg.Host == "" {
		return errors.New("email: SMTP_HOST not configured")
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "smtp dial")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "smtp hello")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return errors.Wrap(err, "smtp starttls")
		}
	}
	if cfg.User != "" && cfg.Pass != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)); err != nil {
			return errors.Wrap(err, "smtp auth")
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return errors.Wrap(err, "smtp mail from")
	}
	for _, rcpt := range m.recipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return errors.Wrapf(err, "smtp rcpt %s", rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "smtp data")
	}
	if _, err := w.Write(buildMessage(cfg.From, m, time.Now())); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "smtp write")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "smtp data close")
	}
	return c.Quit()
}

func (m Mail) recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	return append(all, m.Bcc...)
}

func buildMessage(from string, m Mail, now time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("From", from)
	header("To", strings.Join(m.To, ", "))
	if len(m.Cc) > 0 {
		header("Cc", strings.Join(m.Cc, ", "))
	}
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	if m.HTML {
		header("Content-Type", `text/html; charset="utf-8"`)
	} else {
		header("Content-Type", `text/plain; charset="utf-8"`)
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// Sender sends mail rendered from html/template files.
type Sender struct {
	cfg          SMTPConfig
	templatesDir string
	send         func(ctx context.Context, cfg SMTPConfig, m Mail) error
}

func NewSender(cfg SMTPConfig, templatesDir string) *Sender {
	return &Sender{cfg: cfg, templatesDir: templatesDir, send: Send}
}

func (s *Sender) Render(name string, vars map[string]any) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid template name %q", name)
	}
	t, err := template.ParseFiles(filepath.Join(s.templatesDir, name))
	if err != nil {
		return "", errors.Wrapf(err, "parse template %s", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", errors.Wrapf(err, "render template %s", name)
	}
	return buf.String(), nil
}

// SendTemplate renders name with vars and sends it as HTML.
func (s *Sender) SendTemplate(ctx context.Context, to []string, subject, name string, vars map[string]any, cc, bcc []string) error {
	body, err := s.Render(name, vars)
	if err != nil {
		return err
	}
	return s.send(ctx, s.cfg, Mail{To: to, Cc: cc, Bcc: bcc, Subject: subject, Body: body, HTML: true})
}

// Welcome greets a newly registered user.
func (s *Sender) Welcome(ctx context.Context, p models.Profile) error {
	name := p.Username
	if p.FullName != nil && *p.FullName != "" {
		name = *p.FullName
	}
	return s.SendTemplate(ctx, []string{p.Email}, "Welcome to AI Chat - your account is ready", "welcome.html",
		map[string]any{"Name": name, "Username": p.Username}, nil, nil)
}
