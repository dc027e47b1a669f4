package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"email-bug-tracker-go/internal/config"
)

// GmailSource implements Source using the Gmail API. Unread messages
// stand in for the IMAP \Seen flag: marking seen removes the UNREAD
// label.
type GmailSource struct {
	service   *gmail.Service
	userEmail string
}

// ConnectGmail builds a Gmail API client from OAuth2 refresh-token
// credentials.
func ConnectGmail(cfg *config.MailConfig) (*GmailSource, error) {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	tokenSource := oauth2Config.TokenSource(ctx, token)

	// Bound every API call, including token refreshes, with the
	// configured mail timeout.
	httpClient := oauth2.NewClient(ctx, tokenSource)
	httpClient.Timeout = cfg.Timeout

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to create Gmail service: %w", err)}
	}

	logrus.Infof("Connected to Gmail API for %s", cfg.UserEmail)
	return &GmailSource{service: service, userEmail: cfg.UserEmail}, nil
}

// ListUnseen lists unread inbox messages.
func (s *GmailSource) ListUnseen() ([]Handle, error) {
	call := s.service.Users.Messages.List(s.userEmail).Q("is:unread in:inbox")
	response, err := call.Do()
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to list unread messages: %w", err)}
	}

	handles := make([]Handle, 0, len(response.Messages))
	for _, msg := range response.Messages {
		handles = append(handles, Handle{MessageID: msg.Id})
	}
	return handles, nil
}

// FetchRaw fetches the full RFC 822 message bytes.
func (s *GmailSource) FetchRaw(h Handle) ([]byte, error) {
	msg, err := s.service.Users.Messages.Get(s.userEmail, h.MessageID).Format("raw").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", h.MessageID, err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s payload: %w", h.MessageID, err)
	}
	return raw, nil
}

// MarkSeen removes the UNREAD label from the message.
func (s *GmailSource) MarkSeen(h Handle) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if _, err := s.service.Users.Messages.Modify(s.userEmail, h.MessageID, req).Do(); err != nil {
		return fmt.Errorf("failed to mark message %s as read: %w", h.MessageID, err)
	}
	return nil
}

// Close is a no-op for the Gmail API.
func (s *GmailSource) Close() error {
	return nil
}
