package mailbox

import (
	"errors"
	"fmt"

	"email-bug-tracker-go/internal/config"
)

// Handle identifies a single message within a Source session. SeqNum
// is set by the IMAP source, MessageID by the Gmail source. Handles
// are only valid for the session that produced them.
type Handle struct {
	SeqNum    uint32
	MessageID string
}

func (h Handle) String() string {
	if h.MessageID != "" {
		return h.MessageID
	}
	return fmt.Sprintf("%d", h.SeqNum)
}

// Source is one connected mailbox session. ListUnseen reflects the
// mailbox state at call time; MarkSeen must only be called after the
// caller has made an authoritative decision about the message.
type Source interface {
	ListUnseen() ([]Handle, error)
	FetchRaw(h Handle) ([]byte, error)
	MarkSeen(h Handle) error
	Close() error
}

// ConnectionError marks a transport-level failure (dial, auth, select,
// search). Runs hitting one are retried as a whole; per-message fetch
// failures are not wrapped in it.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mailbox connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a transport-level failure.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Dial opens a mailbox session using the configured transport.
func Dial(cfg *config.MailConfig) (Source, error) {
	if cfg.UseGmailAPI {
		return ConnectGmail(cfg)
	}
	return ConnectIMAP(cfg)
}
