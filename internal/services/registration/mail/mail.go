// Package mail renders and delivers account emails.
package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	texttemplate "text/template"

	"golang.org/x/text/message"

	"github.com/louisbranch/oilandrope/internal/platform/i18n/catalog"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

// Message is one rendered email.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Localizer is the message-printer contract used to translate mail copy.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// LocalizerFor returns the catalog printer for locale.
func LocalizerFor(locale string) Localizer {
	return catalog.Printer(locale)
}

type layoutData struct {
	Lang      string
	Subject   string
	Greeting  string
	Body      string
	Link      string
	Signature string
}

// Activation renders the account activation email.
func Activation(loc Localizer, locale, name, link string) (Message, error) {
	return render(locale, layoutData{
		Subject:   loc.Sprintf("mail.activation.subject"),
		Greeting:  loc.Sprintf("mail.greeting", name),
		Body:      loc.Sprintf("mail.activation.body"),
		Link:      link,
		Signature: loc.Sprintf("mail.signature"),
	})
}

// Invitation renders a campaign invitation email.
func Invitation(loc Localizer, locale, inviter, campaignName, link string) (Message, error) {
	return render(locale, layoutData{
		Subject:   loc.Sprintf("mail.invitation.subject", campaignName),
		Greeting:  loc.Sprintf("mail.greeting", ""),
		Body:      loc.Sprintf("mail.invitation.body", inviter, campaignName),
		Link:      link,
		Signature: loc.Sprintf("mail.signature"),
	})
}

func render(locale string, data layoutData) (Message, error) {
	data.Lang = strings.SplitN(locale, "-", 2)[0]
	data.Greeting = strings.Replace(data.Greeting, " ,", ",", 1)

	var htmlBody bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&htmlBody, "layout.html", data); err != nil {
		return Message{}, fmt.Errorf("render html mail: %w", err)
	}
	var textBody bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&textBody, "layout.txt", data); err != nil {
		return Message{}, fmt.Errorf("render text mail: %w", err)
	}
	return Message{Subject: data.Subject, Text: textBody.String(), HTML: htmlBody.String()}, nil
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string `env:"OILANDROPE_SMTP_HOST"`
	Port     int    `env:"OILANDROPE_SMTP_PORT" envDefault:"587"`
	Username string `env:"OILANDROPE_SMTP_USER"`
	Password string `env:"OILANDROPE_SMTP_PASSWORD"`
	From     string `env:"OILANDROPE_DEFAULT_FROM_EMAIL" envDefault:"oilandrope@localhost"`
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send delivers msg as a multipart/alternative email.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("mail recipient is required")
	}
	from := msg.From
	if from == "" {
		from = s.cfg.From
	}
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	return s.sendMail(addr, auth, from, msg.To, Encode(from, msg))
}

const boundary = "oilandrope-alternative"

// Encode renders msg as RFC 5322 bytes.
func Encode(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	if msg.HTML != "" {
		fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}

// LogSender logs messages instead of sending them. It keeps the last
// messages for inspection in development and tests.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	log.Printf("mail: to=%s subject=%q\n%s", strings.Join(msg.To, ","), msg.Subject, msg.Text)
	return nil
}

// Sent returns a copy of the logged messages.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
