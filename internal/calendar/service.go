// Package calendar is a thin adapter over the Google Calendar API exposing
// the typed operations the agent tools need.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
)

const primaryCalendar = "primary"

// Event is a normalized calendar event returned to the agent.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	AllDay      bool       `json:"all_day"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Organizer   string     `json:"organizer,omitempty"`
	Status      string     `json:"status,omitempty"`
	HTMLLink    string     `json:"html_link,omitempty"`
}

// Attendee is one event participant.
type Attendee struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Response string `json:"response,omitempty"`
}

// EventInput holds the fields for creating a new event.
type EventInput struct {
	Summary     string
	Start       time.Time
	End         time.Time // zero value defaults to Start + 1h
	Description string
	Location    string
	Attendees   []string
}

// EventPatch holds optional field updates; nil fields are left unchanged.
type EventPatch struct {
	Summary     *string
	Start       *time.Time
	End         *time.Time
	Description *string
	Location    *string
}

// ListOptions bounds an event listing.
type ListOptions struct {
	TimeMin    time.Time // zero value defaults to now
	TimeMax    time.Time // zero value means unbounded
	MaxResults int64
}

// Service wraps the Calendar API for a single authenticated user.
type Service struct {
	auth *googleauth.Authenticator
	now  func() time.Time

	mu  sync.Mutex
	api *calendarapi.Service
}

// New creates a Calendar adapter over the shared authenticator.
func New(auth *googleauth.Authenticator) *Service {
	return &Service{auth: auth, now: time.Now}
}

func (s *Service) service(ctx context.Context) (*calendarapi.Service, error) {
	if _, err := s.auth.Token(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, nil
	}
	api, err := calendarapi.NewService(context.Background(),
		option.WithTokenSource(s.auth.TokenSource(context.Background())))
	if err != nil {
		return nil, fmt.Errorf("build calendar client: %w", err)
	}
	s.api = api
	return s.api, nil
}

// List returns upcoming events ordered by start time.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Event, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	timeMin := opts.TimeMin
	if timeMin.IsZero() {
		timeMin = s.now().UTC()
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	call := api.Events.List(primaryCalendar).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if !opts.TimeMax.IsZero() {
		call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, mapError("list events", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, formatEvent(item))
	}
	return events, nil
}

// Today returns all events for the current day.
func (s *Service) Today(ctx context.Context) ([]Event, error) {
	start, end := dayRange(s.now().UTC())
	return s.List(ctx, ListOptions{TimeMin: start, TimeMax: end, MaxResults: 50})
}

// Week returns all events for the current week, starting Monday.
func (s *Service) Week(ctx context.Context) ([]Event, error) {
	start, end := weekRange(s.now().UTC())
	return s.List(ctx, ListOptions{TimeMin: start, TimeMax: end, MaxResults: 100})
}

// Create inserts a new event on the primary calendar.
func (s *Service) Create(ctx context.Context, input EventInput) (*Event, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	end := input.End
	if end.IsZero() {
		end = input.Start.Add(time.Hour)
	}

	body := &calendarapi.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       &calendarapi.EventDateTime{DateTime: input.Start.Format(time.RFC3339), TimeZone: "UTC"},
		End:         &calendarapi.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: "UTC"},
	}
	for _, email := range input.Attendees {
		body.Attendees = append(body.Attendees, &calendarapi.EventAttendee{Email: email})
	}

	created, err := api.Events.Insert(primaryCalendar, body).SendNotifications(true).Context(ctx).Do()
	if err != nil {
		return nil, mapError("create event", err)
	}
	event := formatEvent(created)
	return &event, nil
}

// Update applies the non-nil fields of patch to an existing event.
func (s *Service) Update(ctx context.Context, id string, patch EventPatch) (*Event, error) {
	api, err := s.service(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := api.Events.Get(primaryCalendar, id).Context(ctx).Do()
	if err != nil {
		return nil, mapError(fmt.Sprintf("get event %s", id), err)
	}

	if patch.Summary != nil {
		existing.Summary = *patch.Summary
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.Location != nil {
		existing.Location = *patch.Location
	}
	if patch.Start != nil {
		existing.Start = &calendarapi.EventDateTime{DateTime: patch.Start.Format(time.RFC3339), TimeZone: "UTC"}
	}
	if patch.End != nil {
		existing.End = &calendarapi.EventDateTime{DateTime: patch.End.Format(time.RFC3339), TimeZone: "UTC"}
	}

	updated, err := api.Events.Update(primaryCalendar, id, existing).SendNotifications(true).Context(ctx).Do()
	if err != nil {
		return nil, mapError(fmt.Sprintf("update event %s", id), err)
	}
	event := formatEvent(updated)
	return &event, nil
}

// Delete removes an event from the primary calendar.
func (s *Service) Delete(ctx context.Context, id string) error {
	api, err := s.service(ctx)
	if err != nil {
		return err
	}
	if err := api.Events.Delete(primaryCalendar, id).SendNotifications(true).Context(ctx).Do(); err != nil {
		return mapError(fmt.Sprintf("delete event %s", id), err)
	}
	return nil
}

func formatEvent(event *calendarapi.Event) Event {
	out := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}
	if out.Summary == "" {
		out.Summary = "(No title)"
	}
	if event.Start != nil {
		out.Start = event.Start.DateTime
		if out.Start == "" {
			out.Start = event.Start.Date
			out.AllDay = true
		}
	}
	if event.End != nil {
		out.End = event.End.DateTime
		if out.End == "" {
			out.End = event.End.Date
		}
	}
	if event.Organizer != nil {
		out.Organizer = event.Organizer.Email
	}
	for _, a := range event.Attendees {
		out.Attendees = append(out.Attendees, Attendee{
			Email:    a.Email,
			Name:     a.DisplayName,
			Response: a.ResponseStatus,
		})
	}
	return out
}

func dayRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func weekRange(now time.Time) (time.Time, time.Time) {
	weekday := int(now.Weekday())
	// time.Weekday counts Sunday as 0; weeks here start Monday.
	offset := (weekday + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
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
