// Package calendar abstracts the user's calendar. The service layer uses
// it to find busy windows for planning, to create blocks for scheduled
// tasks, and to import events as tasks.
package calendar

import (
	"context"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

// Event is one calendar entry.
type Event struct {
	ID       string
	Title    string
	Location string
	Start    time.Time
	End      time.Time
}

// Calendar is the provider-neutral calendar surface.
type Calendar interface {
	// Events returns events overlapping the window, soonest first.
	Events(ctx context.Context, from, to time.Time) ([]Event, error)

	// CreateBlock reserves a slot for a task and returns the created
	// event.
	CreateBlock(ctx context.Context, title string, start, end time.Time) (Event, error)

	// DeleteEvent removes an event previously created by CreateBlock.
	DeleteEvent(ctx context.Context, id string) error
}

// BusySlots converts events into the planning agent's slot shape.
func BusySlots(events []Event) []tasks.TimeSlot {
	out := make([]tasks.TimeSlot, 0, len(events))
	for _, ev := range events {
		out = append(out, tasks.TimeSlot{
			Start:  ev.Start,
			End:    ev.End,
			Reason: ev.Title,
		})
	}
	return out
}
