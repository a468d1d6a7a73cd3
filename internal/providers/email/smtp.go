package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) configured() bool {
	return strings.TrimSpace(c.Host) != "" && c.Username != "" && c.Password != "" && c.From != ""
}

type SMTPProvider struct {
	cfg Config
	now func() time.Time
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, now: time.Now}
}

func (p *SMTPProvider) Settings() []Setting {
	return []Setting{
		{Name: "SMTP_HOST", Present: strings.TrimSpace(p.cfg.Host) != ""},
		{Name: "SMTP_USER", Present: p.cfg.Username != ""},
		{Name: "SMTP_PASSWORD", Present: p.cfg.Password != ""},
		{Name: "FROM_EMAIL", Present: p.cfg.From != ""},
	}
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	if !p.cfg.configured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrRecipientRejected)
	}

	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(p.cfg.From); err != nil {
		return classify(err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return classify(err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return classify(err)
	}
	if _, err := w.Write(p.build(msg)); err != nil {
		return classify(err)
	}
	if err := w.Close(); err != nil {
		return classify(err)
	}
	return classify(client.Quit())
}

func (p *SMTPProvider) Verify(ctx context.Context) error {
	if !p.cfg.configured() {
		return ErrNotConfigured
	}
	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return classify(client.Quit())
}

// dial connects, upgrades to TLS and authenticates. Port 465 uses implicit
// TLS; other ports use STARTTLS when the server offers it.
func (p *SMTPProvider) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
	tlsConfig := &tls.Config{ServerName: p.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, classify(err)
	}

	if p.cfg.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, classify(err)
			}
		}
	}

	auth := smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, classify(err)
	}
	return client, nil
}

func (p *SMTPProvider) build(msg Message) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	b.WriteString("From: " + p.cfg.From + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	if msg.Subject != "" {
		b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	}
	b.WriteString("Date: " + p.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// classify maps SMTP replies and network failures onto the provider errors.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 530 || protoErr.Code == 534 || protoErr.Code == 535:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		case protoErr.Code == 550 || protoErr.Code == 551 || protoErr.Code == 553 || protoErr.Code == 501:
			return fmt.Errorf("%w: %v", ErrRecipientRejected, err)
		case protoErr.Code >= 400 && protoErr.Code < 500:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "unencrypted connection") {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
