// Package decoder turns raw message bytes into the decoded subject,
// Message-ID, and plain-text body the extraction pipeline works on.
package decoder

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/sirupsen/logrus"
)

// Email is the decoded view of one message.
type Email struct {
	Subject   string
	MessageID string
	Body      string
	HasBody   bool
}

// Parse decodes the raw RFC 822 bytes. Header decoding is best-effort:
// an unknown charset falls back to the raw header value rather than
// failing the message. A missing plain-text body is reported through
// HasBody, not as an error.
func Parse(raw []byte) (*Email, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	email := &Email{
		Subject:   headerText(entity, "Subject"),
		MessageID: strings.TrimSpace(entity.Header.Get("Message-Id")),
	}

	body, ok := extractPlainText(entity)
	email.Body = body
	email.HasBody = ok

	return email, nil
}

// headerText decodes an RFC 2047 encoded header, falling back to the
// raw value when the charset is unknown.
func headerText(e *message.Entity, key string) string {
	text, err := e.Header.Text(key)
	if err != nil {
		logrus.Warnf("Best-effort decode of %s header: %v", key, err)
		return strings.TrimSpace(e.Header.Get(key))
	}
	return strings.TrimSpace(text)
}

// extractPlainText returns the first usable text/plain part. For a
// multipart message, parts are scanned in order and attachments are
// skipped; a part that fails to decode is logged and the next part is
// tried. For a single-part message the body is used only if its
// content type is text/plain.
func extractPlainText(e *message.Entity) (string, bool) {
	mr := e.MultipartReader()
	if mr == nil {
		if !isPlainText(e) {
			return "", false
		}
		content, err := io.ReadAll(e.Body)
		if err != nil {
			logrus.Warnf("Could not decode single-part message body: %v", err)
			return "", false
		}
		return string(content), true
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				logrus.Warnf("Skipping part with unknown charset: %v", err)
				continue
			}
			logrus.Warnf("Could not read next message part: %v", err)
			break
		}

		if !isPlainText(part) || isAttachment(part) {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			logrus.Warnf("Could not decode plain text part: %v", err)
			continue
		}
		return string(content), true
	}

	return "", false
}

func isPlainText(e *message.Entity) bool {
	t, _, err := e.Header.ContentType()
	if err != nil {
		return false
	}
	// An absent Content-Type defaults to text/plain.
	return t == "" || t == "text/plain"
}

func isAttachment(e *message.Entity) bool {
	disp, _, err := e.Header.ContentDisposition()
	if err != nil {
		// Fall back to a substring check on the raw header.
		return strings.Contains(strings.ToLower(e.Header.Get("Content-Disposition")), "attachment")
	}
	return disp == "attachment"
}
