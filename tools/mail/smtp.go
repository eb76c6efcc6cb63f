package mail

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPOptions configures an SMTPSender.
type SMTPOptions struct {
	// Addr is the host:port of the submission endpoint. The connection is
	// upgraded with STARTTLS when the server offers it.
	Addr string
	// SendMail delivers the encoded message. Defaults to smtp.SendMail.
	SendMail func(addr string, a sasl.Client, from string, to []string, r io.Reader) error
	// Now stamps the Date header.
	Now func() time.Time
}

// SMTPSender submits mail with PLAIN authentication.
type SMTPSender struct {
	creds Credentials
	opts  SMTPOptions
}

// NewSMTPSender returns a sender for creds.
func NewSMTPSender(creds Credentials, optFns ...func(o *SMTPOptions)) *SMTPSender {
	opts := SMTPOptions{
		Addr:     "smtp.gmail.com:587",
		SendMail: smtp.SendMail,
		Now:      time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SMTPSender{creds: creds, opts: opts}
}

// Send implements Sender. An empty From defaults to the account username.
func (s *SMTPSender) Send(ctx context.Context, msg Outgoing) error {
	if err := s.creds.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.From == "" {
		msg.From = s.creds.Username
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mail: no recipients")
	}

	buf, err := encode(msg, s.opts.Now())
	if err != nil {
		return err
	}

	auth := sasl.NewPlainClient("", s.creds.Username, s.creds.Password)
	if err := s.opts.SendMail(s.opts.Addr, auth, msg.From, msg.To, buf); err != nil {
		return fmt.Errorf("send via %s: %w", s.opts.Addr, err)
	}
	return nil
}
