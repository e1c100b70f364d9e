package calendar

import (
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

func TestBusySlots(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "e1", Title: "standup", Start: start, End: start.Add(30 * time.Minute)},
		{ID: "e2", Title: "school run", Start: start.Add(6 * time.Hour), End: start.Add(7 * time.Hour)},
	}

	slots := BusySlots(events)
	if len(slots) != 2 {
		t.Fatalf("got %d slots, want 2", len(slots))
	}
	if slots[0].Reason != "standup" || !slots[0].Start.Equal(start) {
		t.Errorf("slot 0 = %+v", slots[0])
	}
}

func TestEventFromAPISkipsAllDayEvents(t *testing.T) {
	allDay := &gcal.Event{
		Id:      "e1",
		Summary: "birthday",
		Start:   &gcal.EventDateTime{Date: "2025-06-02"},
		End:     &gcal.EventDateTime{Date: "2025-06-03"},
	}
	if _, ok := eventFromAPI(allDay); ok {
		t.Error("all-day event should be skipped")
	}

	timed := &gcal.Event{
		Id:      "e2",
		Summary: "dentist",
		Start:   &gcal.EventDateTime{DateTime: "2025-06-02T10:00:00Z"},
		End:     &gcal.EventDateTime{DateTime: "2025-06-02T10:30:00Z"},
	}
	ev, ok := eventFromAPI(timed)
	if !ok {
		t.Fatal("timed event rejected")
	}
	if ev.Title != "dentist" || ev.End.Sub(ev.Start) != 30*time.Minute {
		t.Errorf("event = %+v", ev)
	}
}
