package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"sync"
	"time"
)

// Email is one outgoing mail.
type Email struct {
	From     string
	FromName string
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SMTPMailer delivers through an SMTP relay with PLAIN auth when a username is set.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := buildMIME(e, time.Now())
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	send := m.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	addr := m.Host + ":" + strconv.Itoa(m.Port)
	if err := send(addr, auth, e.From, []string{e.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", e.To, err)
	}
	return nil
}

func buildMIME(e Email, now time.Time) ([]byte, error) {
	if e.To == "" {
		return nil, errors.New("recipient required")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	from := (&mail.Address{Name: e.FromName, Address: e.From}).String()
	to := (&mail.Address{Name: e.ToName, Address: e.To}).String()
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	for _, part := range []struct{ ctype, body string }{
		{"text/plain; charset=utf-8", e.Text},
		{"text/html; charset=utf-8", e.HTML},
	} {
		if part.body == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LogMailer writes mails to the structured log instead of sending them.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, e Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail", "to", e.To, "subject", e.Subject, "text", e.Text)
	return nil
}

// MemoryMailer keeps mails in memory.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Email
	// Err, when set, is returned by Send and nothing is recorded.
	Err error
}

func (m *MemoryMailer) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *MemoryMailer) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

func (m *MemoryMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}

// SentTo returns mails for one address.
func (m *MemoryMailer) SentTo(addr string) []Email {
	var out []Email
	for _, e := range m.Sent() {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}
