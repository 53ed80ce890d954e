package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RahimMirani/scheduling-agent/internal/gmail"
)

// MailService is the mail adapter surface the tools execute against.
type MailService interface {
	List(ctx context.Context, query string, maxResults int64) ([]gmail.Message, error)
	ListUnread(ctx context.Context, maxResults int64) ([]gmail.Message, error)
	Get(ctx context.Context, id string) (*gmail.Message, error)
	Send(ctx context.Context, to, subject, body string) (*gmail.SendResult, error)
	Trash(ctx context.Context, id string) error
	MarkRead(ctx context.Context, id string) error
}

func jsonOutput(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool output: %w", err)
	}
	return string(data), nil
}

func maxResultsSchema() map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": "Maximum number of results to return (default 10)",
	}
}

// --- get_emails ---

// GetEmailsTool lists inbox messages, optionally filtered by a search query.
type GetEmailsTool struct {
	Mail MailService
}

func (t GetEmailsTool) Name() string { return "get_emails" }

func (t GetEmailsTool) Description() string {
	return "Get a list of emails from the inbox. Use this to check for emails, find specific emails, or see recent messages."
}

func (t GetEmailsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_results": maxResultsSchema(),
			"query": map[string]any{
				"type":        "string",
				"description": "Gmail search query (e.g. 'is:unread', 'from:someone@example.com', 'subject:meeting')",
			},
		},
	}
}

func (t GetEmailsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	emails, err := t.Mail.List(ctx, optionalString(args, "query"), int64(optionalInt(args, "max_results", 10)))
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"emails": emails, "count": len(emails)})
}

// --- get_unread_emails ---

// GetUnreadEmailsTool lists unread inbox messages.
type GetUnreadEmailsTool struct {
	Mail MailService
}

func (t GetUnreadEmailsTool) Name() string { return "get_unread_emails" }

func (t GetUnreadEmailsTool) Description() string {
	return "Get unread emails from the inbox."
}

func (t GetUnreadEmailsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_results": maxResultsSchema(),
		},
	}
}

func (t GetUnreadEmailsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	emails, err := t.Mail.ListUnread(ctx, int64(optionalInt(args, "max_results", 10)))
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"emails": emails, "count": len(emails)})
}

// --- get_email_details ---

// GetEmailDetailsTool fetches one message including the decoded body.
type GetEmailDetailsTool struct {
	Mail MailService
}

func (t GetEmailDetailsTool) Name() string { return "get_email_details" }

func (t GetEmailDetailsTool) Description() string {
	return "Get the full details of a specific email including the body content."
}

func (t GetEmailDetailsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email_id": map[string]any{
				"type":        "string",
				"description": "The ID of the email to retrieve",
			},
		},
		"required": []string{"email_id"},
	}
}

func (t GetEmailDetailsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "email_id")
	if err != nil {
		return "", err
	}
	email, err := t.Mail.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"email": email})
}

// --- send_email ---

// SendEmailTool sends a plain-text email.
type SendEmailTool struct {
	Mail MailService
}

func (t SendEmailTool) Name() string { return "send_email" }

func (t SendEmailTool) Description() string {
	return "Send an email to a recipient."
}

func (t SendEmailTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient email address",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject line",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Email body content",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (t SendEmailTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	to, err := stringArg(args, "to")
	if err != nil {
		return "", err
	}
	subject, err := stringArg(args, "subject")
	if err != nil {
		return "", err
	}
	body, err := stringArg(args, "body")
	if err != nil {
		return "", err
	}

	sent, err := t.Mail.Send(ctx, to, subject, body)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{
		"id":      sent.ID,
		"message": fmt.Sprintf("Email sent successfully to %s", to),
	})
}

// --- search_emails ---

// SearchEmailsTool searches mail with Gmail query syntax.
type SearchEmailsTool struct {
	Mail MailService
}

func (t SearchEmailsTool) Name() string { return "search_emails" }

func (t SearchEmailsTool) Description() string {
	return "Search emails using Gmail query syntax."
}

func (t SearchEmailsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Gmail search query (e.g. 'from:john subject:project')",
			},
			"max_results": maxResultsSchema(),
		},
		"required": []string{"query"},
	}
}

func (t SearchEmailsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}
	emails, err := t.Mail.List(ctx, query, int64(optionalInt(args, "max_results", 10)))
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"emails": emails, "count": len(emails)})
}

// --- delete_email ---

// DeleteEmailTool moves a message to the trash.
type DeleteEmailTool struct {
	Mail MailService
}

func (t DeleteEmailTool) Name() string { return "delete_email" }

func (t DeleteEmailTool) Description() string {
	return "Move an email to trash."
}

func (t DeleteEmailTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email_id": map[string]any{
				"type":        "string",
				"description": "The ID of the email to delete",
			},
		},
		"required": []string{"email_id"},
	}
}

func (t DeleteEmailTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "email_id")
	if err != nil {
		return "", err
	}
	if err := t.Mail.Trash(ctx, id); err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"message": "Email moved to trash"})
}

// --- mark_email_as_read ---

// MarkEmailReadTool clears the unread flag on a message.
type MarkEmailReadTool struct {
	Mail MailService
}

func (t MarkEmailReadTool) Name() string { return "mark_email_as_read" }

func (t MarkEmailReadTool) Description() string {
	return "Mark an email as read."
}

func (t MarkEmailReadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"email_id": map[string]any{
				"type":        "string",
				"description": "The ID of the email to mark as read",
			},
		},
		"required": []string{"email_id"},
	}
}

func (t MarkEmailReadTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "email_id")
	if err != nil {
		return "", err
	}
	if err := t.Mail.MarkRead(ctx, id); err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"message": "Email marked as read"})
}
