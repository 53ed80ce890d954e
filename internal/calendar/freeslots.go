package calendar

import (
	"context"
	"time"
)

const (
	workdayStartHour = 9
	workdayEndHour   = 17
	slotStep         = 30 * time.Minute
	maxFreeSlots     = 20
)

// FreeSlot is one open scheduling window.
type FreeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Date  string `json:"date"`
}

// Interval is a half-open busy period [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// FindFreeSlots lists open slots of the requested duration over the next
// daysAhead days within working hours.
func (s *Service) FindFreeSlots(ctx context.Context, durationMinutes, daysAhead int) ([]FreeSlot, error) {
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	if daysAhead <= 0 {
		daysAhead = 7
	}

	now := s.now().UTC()
	events, err := s.List(ctx, ListOptions{
		TimeMin:    now,
		TimeMax:    now.AddDate(0, 0, daysAhead),
		MaxResults: 250,
	})
	if err != nil {
		return nil, err
	}

	busy := make([]Interval, 0, len(events))
	for _, event := range events {
		start, err1 := time.Parse(time.RFC3339, event.Start)
		end, err2 := time.Parse(time.RFC3339, event.End)
		if err1 != nil || err2 != nil {
			// All-day events carry date-only stamps; skip them for slot math.
			continue
		}
		busy = append(busy, Interval{Start: start, End: end})
	}

	return searchFreeSlots(now, busy, time.Duration(durationMinutes)*time.Minute, daysAhead), nil
}

// searchFreeSlots walks each workday in slotStep increments and keeps windows
// that overlap no busy interval. Pure so it is testable without the API.
func searchFreeSlots(now time.Time, busy []Interval, duration time.Duration, daysAhead int) []FreeSlot {
	var slots []FreeSlot

	for dayOffset := 0; dayOffset < daysAhead && len(slots) < maxFreeSlots; dayOffset++ {
		day := now.AddDate(0, 0, dayOffset)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), workdayStartHour, 0, 0, 0, day.Location())
		dayEnd := time.Date(day.Year(), day.Month(), day.Day(), workdayEndHour, 0, 0, 0, day.Location())

		if dayStart.Before(now) {
			dayStart = now
		}

		for slotStart := dayStart; !slotStart.Add(duration).After(dayEnd); slotStart = slotStart.Add(slotStep) {
			slotEnd := slotStart.Add(duration)

			free := true
			for _, b := range busy {
				if slotStart.Before(b.End) && b.Start.Before(slotEnd) {
					free = false
					break
				}
			}
			if free {
				slots = append(slots, FreeSlot{
					Start: slotStart.Format(time.RFC3339),
					End:   slotEnd.Format(time.RFC3339),
					Date:  slotStart.Format("2006-01-02"),
				})
				if len(slots) >= maxFreeSlots {
					break
				}
			}
		}
	}

	return slots
}
