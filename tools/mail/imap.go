package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// IMAPOptions configures an IMAPMailbox.
type IMAPOptions struct {
	// Addr is the host:port of the IMAP over TLS endpoint.
	Addr string
	// Mailbox is the folder to read.
	Mailbox string
	// Timeout bounds every IMAP command.
	Timeout time.Duration
	// TLSConfig overrides the default TLS configuration.
	TLSConfig *tls.Config
}

// IMAPMailbox reads a folder over IMAP with TLS. Every call opens its own
// session, so the value is safe for concurrent use.
type IMAPMailbox struct {
	creds Credentials
	opts  IMAPOptions
}

// NewIMAPMailbox returns a mailbox for creds.
func NewIMAPMailbox(creds Credentials, optFns ...func(o *IMAPOptions)) *IMAPMailbox {
	opts := IMAPOptions{
		Addr:    "imap.gmail.com:993",
		Mailbox: "INBOX",
		Timeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &IMAPMailbox{creds: creds, opts: opts}
}

func (m *IMAPMailbox) session(ctx context.Context, selectBox bool) (*client.Client, error) {
	if err := m.creds.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := client.DialTLS(m.opts.Addr, m.opts.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", m.opts.Addr, err)
	}
	c.Timeout = m.opts.Timeout

	if err := c.Login(m.creds.Username, m.creds.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if selectBox {
		if _, err := c.Select(m.opts.Mailbox, true); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("failed to select %s: %w", m.opts.Mailbox, err)
		}
	}
	return c, nil
}

// Login implements Mailbox.
func (m *IMAPMailbox) Login(ctx context.Context) (string, error) {
	c, err := m.session(ctx, false)
	if err != nil {
		return "", err
	}
	defer c.Logout()
	return m.creds.Username, nil
}

// List implements Mailbox.
func (m *IMAPMailbox) List(ctx context.Context) ([]uint32, error) {
	c, err := m.session(ctx, true)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	ids, err := c.Search(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return ids, nil
}

// Fetch implements Mailbox. The message is fetched with BODY.PEEK so its
// seen flag is left alone.
func (m *IMAPMailbox) Fetch(ctx context.Context, id uint32) (Email, error) {
	c, err := m.session(ctx, true)
	if err != nil {
		return Email{}, err
	}
	defer c.Logout()

	seq := new(imap.SeqSet)
	seq.AddNum(id)
	section := &imap.BodySectionName{Peek: true}

	ch := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seq, []imap.FetchItem{section.FetchItem()}, ch)
	}()

	var raw imap.Literal
	for msg := range ch {
		if body := msg.GetBody(section); body != nil {
			raw = body
		}
	}
	if err := <-done; err != nil {
		return Email{}, fmt.Errorf("failed to fetch email %d: %w", id, err)
	}
	if raw == nil {
		return Email{}, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}

	e, err := ReadMessage(raw)
	if err != nil {
		return Email{}, err
	}
	e.ID = id
	return e, nil
}

// ErrNotFound is returned for an id that is not in the mailbox.
var ErrNotFound = errors.New("email not found")
