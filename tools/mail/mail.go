// Package mail gives agents access to an email account: reading the inbox
// over IMAP and sending HTML mail over SMTP. Credentials are part of the
// process configuration and never model arguments.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
)

// ErrNoCredentials is returned when a client is used without a username.
var ErrNoCredentials = errors.New("mail: no credentials configured")

// Credentials authenticate against both the IMAP and the SMTP server.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) validate() error {
	if c.Username == "" {
		return ErrNoCredentials
	}
	return nil
}

// Email is a received message.
type Email struct {
	ID      uint32
	From    string
	Subject string
	Date    time.Time
	Body    string
}

// String renders the email the way tools report it to the model.
func (e Email) String() string {
	return fmt.Sprintf("Subject: %s\nBody: %s", e.Subject, e.Body)
}

// Outgoing is a message to send.
type Outgoing struct {
	From    string
	To      []string
	Subject string
	// HTML is the message body.
	HTML string
}

// Mailbox reads an inbox. IDs are message sequence numbers in ascending
// order, the newest message last.
type Mailbox interface {
	// Login verifies the credentials and returns the authenticated user.
	Login(ctx context.Context) (string, error)
	// List returns the ids of all messages.
	List(ctx context.Context) ([]uint32, error)
	// Fetch returns a single message.
	Fetch(ctx context.Context, id uint32) (Email, error)
}

// Sender delivers outgoing mail.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) error
}

// WriteMessage encodes msg as a single part text/html MIME message.
func WriteMessage(w io.Writer, msg Outgoing, date time.Time) error {
	from, err := gomail.ParseAddress(msg.From)
	if err != nil {
		return fmt.Errorf("parse sender %q: %w", msg.From, err)
	}
	to := make([]*gomail.Address, 0, len(msg.To))
	for _, rcpt := range msg.To {
		addr, err := gomail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("parse recipient %q: %w", rcpt, err)
		}
		to = append(to, addr)
	}

	var h gomail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*gomail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	body, err := gomail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(body, msg.HTML); err != nil {
		body.Close()
		return err
	}
	return body.Close()
}

// ReadMessage decodes a raw RFC 5322 message. The body is the first text
// part, preferring text/plain over text/html.
func ReadMessage(r io.Reader) (Email, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Email{}, fmt.Errorf("read message: %w", err)
	}

	var e Email
	e.Subject, _ = mr.Header.Subject()
	e.Date, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		e.From = from[0].String()
	}

	var htmlBody string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return Email{}, fmt.Errorf("read part: %w", err)
		}
		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		data, err := io.ReadAll(p.Body)
		if err != nil {
			return Email{}, fmt.Errorf("read body: %w", err)
		}
		ct, _, _ := h.ContentType()
		switch {
		case ct == "text/plain" || ct == "":
			e.Body = strings.TrimSpace(string(data))
			return e, nil
		case ct == "text/html" && htmlBody == "":
			htmlBody = strings.TrimSpace(string(data))
		}
	}
	e.Body = htmlBody
	return e, nil
}

func encode(msg Outgoing, date time.Time) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, msg, date); err != nil {
		return nil, err
	}
	return &buf, nil
}
