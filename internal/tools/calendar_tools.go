package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/RahimMirani/scheduling-agent/internal/calendar"
)

// CalendarService is the calendar adapter surface the tools execute against.
type CalendarService interface {
	List(ctx context.Context, opts calendar.ListOptions) ([]calendar.Event, error)
	Today(ctx context.Context) ([]calendar.Event, error)
	Week(ctx context.Context) ([]calendar.Event, error)
	Create(ctx context.Context, input calendar.EventInput) (*calendar.Event, error)
	Update(ctx context.Context, id string, patch calendar.EventPatch) (*calendar.Event, error)
	Delete(ctx context.Context, id string) error
	FindFreeSlots(ctx context.Context, durationMinutes, daysAhead int) ([]calendar.FreeSlot, error)
}

// Event times arrive from the model as ISO timestamps, with or without zone.
func parseEventTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use ISO format like 2024-01-15T14:00:00", value)
}

// --- get_calendar_events ---

// GetEventsTool lists upcoming calendar events.
type GetEventsTool struct {
	Calendar CalendarService
}

func (t GetEventsTool) Name() string { return "get_calendar_events" }

func (t GetEventsTool) Description() string {
	return "Get upcoming calendar events."
}

func (t GetEventsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"max_results": maxResultsSchema(),
		},
	}
}

func (t GetEventsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	events, err := t.Calendar.List(ctx, calendar.ListOptions{
		MaxResults: int64(optionalInt(args, "max_results", 10)),
	})
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"events": events, "count": len(events)})
}

// --- get_today_events ---

// GetTodayEventsTool lists today's calendar events.
type GetTodayEventsTool struct {
	Calendar CalendarService
}

func (t GetTodayEventsTool) Name() string { return "get_today_events" }

func (t GetTodayEventsTool) Description() string {
	return "Get all calendar events for today."
}

func (t GetTodayEventsTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t GetTodayEventsTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	events, err := t.Calendar.Today(ctx)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"events": events, "count": len(events)})
}

// --- get_week_events ---

// GetWeekEventsTool lists this week's calendar events.
type GetWeekEventsTool struct {
	Calendar CalendarService
}

func (t GetWeekEventsTool) Name() string { return "get_week_events" }

func (t GetWeekEventsTool) Description() string {
	return "Get all calendar events for the current week."
}

func (t GetWeekEventsTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t GetWeekEventsTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	events, err := t.Calendar.Week(ctx)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"events": events, "count": len(events)})
}

// --- create_calendar_event ---

// CreateEventTool creates a new calendar event.
type CreateEventTool struct {
	Calendar CalendarService
}

func (t CreateEventTool) Name() string { return "create_calendar_event" }

func (t CreateEventTool) Description() string {
	return "Create a new calendar event."
}

func (t CreateEventTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": map[string]any{
				"type":        "string",
				"description": "Event title/summary",
			},
			"start_time": map[string]any{
				"type":        "string",
				"description": "Event start time in ISO format (e.g. '2024-01-15T14:00:00')",
			},
			"end_time": map[string]any{
				"type":        "string",
				"description": "Event end time in ISO format (optional, defaults to 1 hour after start)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Event description (optional)",
			},
			"location": map[string]any{
				"type":        "string",
				"description": "Event location (optional)",
			},
			"attendees": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of attendee email addresses (optional)",
			},
		},
		"required": []string{"summary", "start_time"},
	}
}

func (t CreateEventTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	summary, err := stringArg(args, "summary")
	if err != nil {
		return "", err
	}
	startRaw, err := stringArg(args, "start_time")
	if err != nil {
		return "", err
	}
	start, err := parseEventTime(startRaw)
	if err != nil {
		return "", err
	}

	input := calendar.EventInput{
		Summary:     summary,
		Start:       start,
		Description: optionalString(args, "description"),
		Location:    optionalString(args, "location"),
		Attendees:   optionalStringSlice(args, "attendees"),
	}
	if endRaw := optionalString(args, "end_time"); endRaw != "" {
		end, err := parseEventTime(endRaw)
		if err != nil {
			return "", err
		}
		input.End = end
	}

	event, err := t.Calendar.Create(ctx, input)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"event": event, "message": "Event created successfully"})
}

// --- update_calendar_event ---

// UpdateEventTool updates fields on an existing event.
type UpdateEventTool struct {
	Calendar CalendarService
}

func (t UpdateEventTool) Name() string { return "update_calendar_event" }

func (t UpdateEventTool) Description() string {
	return "Update an existing calendar event."
}

func (t UpdateEventTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_id": map[string]any{
				"type":        "string",
				"description": "The ID of the event to update",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "New event title (optional)",
			},
			"start_time": map[string]any{
				"type":        "string",
				"description": "New start time in ISO format (optional)",
			},
			"end_time": map[string]any{
				"type":        "string",
				"description": "New end time in ISO format (optional)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "New description (optional)",
			},
			"location": map[string]any{
				"type":        "string",
				"description": "New location (optional)",
			},
		},
		"required": []string{"event_id"},
	}
}

func (t UpdateEventTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "event_id")
	if err != nil {
		return "", err
	}

	var patch calendar.EventPatch
	if v, ok := args["summary"].(string); ok {
		patch.Summary = &v
	}
	if v, ok := args["description"].(string); ok {
		patch.Description = &v
	}
	if v, ok := args["location"].(string); ok {
		patch.Location = &v
	}
	if raw := optionalString(args, "start_time"); raw != "" {
		start, err := parseEventTime(raw)
		if err != nil {
			return "", err
		}
		patch.Start = &start
	}
	if raw := optionalString(args, "end_time"); raw != "" {
		end, err := parseEventTime(raw)
		if err != nil {
			return "", err
		}
		patch.End = &end
	}

	event, err := t.Calendar.Update(ctx, id, patch)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"event": event, "message": "Event updated successfully"})
}

// --- delete_calendar_event ---

// DeleteEventTool removes a calendar event.
type DeleteEventTool struct {
	Calendar CalendarService
}

func (t DeleteEventTool) Name() string { return "delete_calendar_event" }

func (t DeleteEventTool) Description() string {
	return "Delete a calendar event."
}

func (t DeleteEventTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_id": map[string]any{
				"type":        "string",
				"description": "The ID of the event to delete",
			},
		},
		"required": []string{"event_id"},
	}
}

func (t DeleteEventTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "event_id")
	if err != nil {
		return "", err
	}
	if err := t.Calendar.Delete(ctx, id); err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"message": "Event deleted successfully"})
}

// --- find_free_slots ---

// FindFreeSlotsTool searches the calendar for open scheduling windows.
type FindFreeSlotsTool struct {
	Calendar CalendarService
}

func (t FindFreeSlotsTool) Name() string { return "find_free_slots" }

func (t FindFreeSlotsTool) Description() string {
	return "Find available free time slots in the calendar for scheduling."
}

func (t FindFreeSlotsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_minutes": map[string]any{
				"type":        "integer",
				"description": "Required duration for the meeting in minutes (default 60)",
			},
			"days_ahead": map[string]any{
				"type":        "integer",
				"description": "Number of days to look ahead (default 7)",
			},
		},
	}
}

func (t FindFreeSlotsTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	slots, err := t.Calendar.FindFreeSlots(ctx,
		optionalInt(args, "duration_minutes", 60),
		optionalInt(args, "days_ahead", 7),
	)
	if err != nil {
		return "", err
	}
	return jsonOutput(map[string]any{"free_slots": slots, "count": len(slots)})
}

// RegisterAll registers the full Gmail and Calendar tool set.
func RegisterAll(r *Registry, mail MailService, cal CalendarService) error {
	all := []Tool{
		GetEmailsTool{Mail: mail},
		GetUnreadEmailsTool{Mail: mail},
		GetEmailDetailsTool{Mail: mail},
		SendEmailTool{Mail: mail},
		SearchEmailsTool{Mail: mail},
		DeleteEmailTool{Mail: mail},
		MarkEmailReadTool{Mail: mail},
		GetEventsTool{Calendar: cal},
		GetTodayEventsTool{Calendar: cal},
		GetWeekEventsTool{Calendar: cal},
		CreateEventTool{Calendar: cal},
		UpdateEventTool{Calendar: cal},
		DeleteEventTool{Calendar: cal},
		FindFreeSlotsTool{Calendar: cal},
	}
	for _, tool := range all {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
