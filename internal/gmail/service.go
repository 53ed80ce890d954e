// Package gmail is a thin adapter over the Gmail API exposing the typed
// operations the agent tools need.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
)

// Message is a normalized email summary returned to the agent.
type Message struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"thread_id"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	To       string   `json:"to,omitempty"`
	Date     string   `json:"date"`
	Snippet  string   `json:"snippet"`
	Body     string   `json:"body,omitempty"`
	Labels   []string `json:"labels,omitempty"`
}

// SendResult reports a successfully sent message.
type SendResult struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

// Service wraps the Gmail API for a single authenticated user.
type Service struct {
	auth *googleauth.Authenticator

	mu  sync.Mutex
	api *gmailapi.Service
}

// New creates a Gmail adapter over the shared authenticator.
func New(auth *googleauth.Authenticator) *Service {
	return &Service{auth: auth}
}

func (s *Service) service(ctx context.Context) (*gmailapi.Service, error) {
	// Fail fast with ErrAuthRequired before building the client.
	if _, err := s.auth.Token(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, nil
	}
	api, err := gmailapi.NewService(context.Background(),
		option.WithTokenSource(s.auth.TokenSource(context.Background())))
	if err != nil {
		return nil, fmt.Errorf("build gmail client: %w", err)
	}
	s.api = api
	return s.api, nil
}

// List returns messages matching a Gmail search query, with full details.
func (s *Service) List(ctx context.Context, query string, maxResults int64) ([]Message, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	call := api.Users.Messages.List("me").MaxResults(maxResults).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, mapError("list messages", err)
	}

	messages := make([]Message, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := s.Get(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

// ListUnread returns unread inbox messages.
func (s *Service) ListUnread(ctx context.Context, maxResults int64) ([]Message, error) {
	return s.List(ctx, "is:unread", maxResults)
}

// Get fetches one message with headers and decoded body.
func (s *Service) Get(ctx context.Context, id string) (*Message, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := api.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, mapError(fmt.Sprintf("get message %s", id), err)
	}

	headers := map[string]string{}
	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	msg := &Message{
		ID:       raw.Id,
		ThreadID: raw.ThreadId,
		Subject:  headerOr(headers, "subject", "(No Subject)"),
		From:     headerOr(headers, "from", "Unknown"),
		To:       headers["to"],
		Date:     headers["date"],
		Snippet:  raw.Snippet,
		Body:     extractBody(raw.Payload),
		Labels:   raw.LabelIds,
	}
	return msg, nil
}

// Send builds an RFC 2822 message and sends it.
func (s *Service) Send(ctx context.Context, to, subject, body string) (*SendResult, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	sent, err := api.Users.Messages.Send("me", &gmailapi.Message{
		Raw: base64.RawURLEncoding.EncodeToString([]byte(msg.String())),
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError("send message", err)
	}
	return &SendResult{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// Trash moves a message to the trash.
func (s *Service) Trash(ctx context.Context, id string) error {
	api, err := s.service(ctx)
	if err != nil {
		return err
	}
	if _, err := api.Users.Messages.Trash("me", id).Context(ctx).Do(); err != nil {
		return mapError(fmt.Sprintf("trash message %s", id), err)
	}
	return nil
}

// MarkRead removes the UNREAD label from a message.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.modifyLabels(ctx, id, nil, []string{"UNREAD"})
}

func (s *Service) modifyLabels(ctx context.Context, id string, add, remove []string) error {
	api, err := s.service(ctx)
	if err != nil {
		return err
	}
	_, err = api.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return mapError(fmt.Sprintf("modify message %s", id), err)
	}
	return nil
}

func headerOr(headers map[string]string, key, fallback string) string {
	if v := headers[key]; v != "" {
		return v
	}
	return fallback
}

// extractBody walks the MIME tree preferring text/plain, falling back to
// text/html, recursing into multipart containers.
func extractBody(payload *gmailapi.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodePart(payload.Body.Data)
	}

	var html string
	for _, part := range payload.Parts {
		switch {
		case part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "":
			return decodePart(part.Body.Data)
		case part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" && html == "":
			html = decodePart(part.Body.Data)
		case len(part.Parts) > 0:
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}
	return html
}

func decodePart(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 404:
			return fmt.Errorf("%s: not found", op)
		case 403:
			return fmt.Errorf("%s: permission denied", op)
		case 429:
			return fmt.Errorf("%s: rate limited, try again later", op)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
