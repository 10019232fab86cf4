package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestActivationRendersLocalizedBodies(t *testing.T) {
	msg, err := Activation(LocalizerFor("en-US"), "en-US", "Ana", "https://oilandrope.test/activate/abc")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "Activate your Oil & Rope account" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Hi Ana,") || !strings.Contains(msg.Text, "https://oilandrope.test/activate/abc") {
		t.Fatalf("unexpected text body: %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, `<a href="https://oilandrope.test/activate/abc">`) {
		t.Fatalf("expected link in html body: %q", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "Oil &amp; Rope") {
		t.Fatalf("expected escaped signature in html body: %q", msg.HTML)
	}
}

func TestActivationSpanish(t *testing.T) {
	msg, err := Activation(LocalizerFor("es-ES"), "es-ES", "Ana", "https://x.test/a")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.HTML, `lang="es"`) {
		t.Fatalf("expected spanish html lang: %q", msg.HTML)
	}
	if !strings.HasPrefix(msg.Text, "Hola Ana,") {
		t.Fatalf("expected spanish greeting, got %q", msg.Text)
	}
}

func TestInvitationWithoutName(t *testing.T) {
	msg, err := Invitation(LocalizerFor("en-US"), "en-US", "gm", "Curse of Strahd", "https://x.test/join")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "You have been invited to Curse of Strahd" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.HasPrefix(msg.Text, "Hi,") {
		t.Fatalf("expected bare greeting, got %q", msg.Text)
	}
}

func TestSMTPSenderSends(t *testing.T) {
	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.test", Port: 2525, Username: "u", Password: "p", From: "bot@oilandrope.test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		if a == nil {
			t.Fatal("expected auth")
		}
		return nil
	}
	err = sender.Send(context.Background(), Message{To: []string{"a@b.test"}, Subject: "Hello", Text: "plain", HTML: "<p>rich</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.test:2525" || gotFrom != "bot@oilandrope.test" || len(gotTo) != 1 {
		t.Fatalf("unexpected envelope: %s %s %v", gotAddr, gotFrom, gotTo)
	}
	body := string(gotBody)
	for _, want := range []string{"Subject: Hello\r\n", "text/plain", "plain", "text/html", "<p>rich</p>"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
}

func TestSMTPSenderErrors(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{}); err == nil {
		t.Fatal("expected missing host to fail")
	}
	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.test"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), Message{}); err == nil {
		t.Fatal("expected missing recipient to fail")
	}
	boom := errors.New("boom")
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	if err := sender.Send(context.Background(), Message{To: []string{"a@b.test"}}); !errors.Is(err, boom) {
		t.Fatalf("expected relay error, got %v", err)
	}
}

func TestLogSenderKeepsMessages(t *testing.T) {
	sender := &LogSender{}
	if err := sender.Send(context.Background(), Message{To: []string{"a@b.test"}, Subject: "s"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent := sender.Sent(); len(sent) != 1 || sent[0].Subject != "s" {
		t.Fatalf("sent = %+v", sent)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, Message{}); err == nil {
		t.Fatal("expected canceled context to fail")
	}
}
