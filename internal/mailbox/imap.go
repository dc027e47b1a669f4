package mailbox

import (
	"fmt"
	"io"
	"net"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"email-bug-tracker-go/internal/config"
)

// IMAPSource implements Source over a single IMAP connection.
type IMAPSource struct {
	client  *client.Client
	mailbox string
}

// ConnectIMAP dials the IMAP server over TLS, logs in, and selects the
// configured mailbox. All failures here are connection errors.
func ConnectIMAP(cfg *config.MailConfig) (*IMAPSource, error) {
	addr := fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort)

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	c, err := client.DialWithDialerTLS(dialer, addr, nil)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to connect to IMAP server %s: %w", addr, err)}
	}
	c.Timeout = cfg.Timeout

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, &ConnectionError{Err: fmt.Errorf("failed to login to IMAP server: %w", err)}
	}

	if _, err := c.Select(cfg.Mailbox, false); err != nil {
		c.Logout()
		return nil, &ConnectionError{Err: fmt.Errorf("failed to select mailbox %q: %w", cfg.Mailbox, err)}
	}

	logrus.Infof("Connected to IMAP server %s, mailbox %s", addr, cfg.Mailbox)
	return &IMAPSource{client: c, mailbox: cfg.Mailbox}, nil
}

// ListUnseen searches the selected mailbox for messages without the
// \Seen flag, in mailbox order.
func (s *IMAPSource) ListUnseen() ([]Handle, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := s.client.Search(criteria)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to search for unseen messages: %w", err)}
	}

	handles := make([]Handle, 0, len(seqNums))
	for _, n := range seqNums {
		handles = append(handles, Handle{SeqNum: n})
	}
	return handles, nil
}

// FetchRaw fetches the full raw message (BODY[]) for one handle.
// Failures here are per-message; the caller skips and continues.
func (s *IMAPSource) FetchRaw(h Handle) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(h.SeqNum)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	// Drain the channel fully; the server may send extra untagged
	// FETCH responses.
	var raw []byte
	var readErr error
	for msg := range messages {
		if raw != nil {
			continue
		}
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		b, err := io.ReadAll(r)
		if err != nil {
			readErr = err
			continue
		}
		raw = b
		readErr = nil
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", h.SeqNum, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read message %d body: %w", h.SeqNum, readErr)
	}
	if raw == nil {
		return nil, fmt.Errorf("server returned no body section for message %d", h.SeqNum)
	}
	return raw, nil
}

// MarkSeen adds the \Seen flag to the message.
func (s *IMAPSource) MarkSeen(h Handle) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(h.SeqNum)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := s.client.Store(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark message %d as seen: %w", h.SeqNum, err)
	}
	return nil
}

// Close logs out, releasing the connection.
func (s *IMAPSource) Close() error {
	return s.client.Logout()
}
