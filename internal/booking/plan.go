package booking

import (
	"context"
	"sort"

	"giftwrap/internal/model"
	"giftwrap/internal/slots"
)

// PlanEntry is one booking's place in the day's work plan.
type PlanEntry struct {
	BookingID     int64          `json:"booking_id"`
	Customer      string         `json:"customer"`
	Category      model.Category `json:"category"`
	Start         string         `json:"start"`
	Duration      int            `json:"duration_minutes"`
	Completion    string         `json:"completion"`
	PastClosing   bool           `json:"past_closing"`
	NumberOfGifts int            `json:"number_of_gifts"`
}

// PlanSegment is a stretch of work on one booking.
type PlanSegment struct {
	BookingID int64  `json:"booking_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// DayPlan is the simulated order of work for a date.
type DayPlan struct {
	Date     string        `json:"date"`
	Ceiling  string        `json:"ceiling,omitempty"`
	Finish   string        `json:"finish,omitempty"`
	Overrun  bool          `json:"overrun"`
	Bookings []PlanEntry   `json:"bookings"`
	Segments []PlanSegment `json:"segments"`
}

// WorkPlan simulates the active bookings of date in the order the worker
// would handle them.
func (s *Service) WorkPlan(ctx context.Context, date, workerID string) (*DayPlan, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	d, err := s.loadDay(ctx, date, workerID)
	if err != nil {
		return nil, err
	}

	plan := &DayPlan{Date: date, Bookings: []PlanEntry{}, Segments: []PlanSegment{}}
	if len(d.base) == 0 || len(d.bookings) == 0 {
		return plan, nil
	}

	ceiling, err := slots.Ceiling(d.base, s.cfg.ClosingBufferMinutes)
	if err != nil {
		return nil, err
	}
	sim := slots.Simulate(d.jobs())

	plan.Ceiling = slots.FormatClock(ceiling)
	plan.Finish = slots.FormatClock(sim.Finish)
	plan.Overrun = sim.Finish > ceiling

	for _, b := range d.bookings {
		done := sim.Completion[b.ID]
		plan.Bookings = append(plan.Bookings, PlanEntry{
			BookingID:     b.ID,
			Customer:      b.CustomerName,
			Category:      b.Category,
			Start:         b.Time,
			Duration:      d.durations[b.ID],
			Completion:    slots.FormatClock(done),
			PastClosing:   done > ceiling,
			NumberOfGifts: b.NumberOfGifts,
		})
	}
	sort.SliceStable(plan.Bookings, func(i, j int) bool {
		if plan.Bookings[i].Start != plan.Bookings[j].Start {
			return plan.Bookings[i].Start < plan.Bookings[j].Start
		}
		return plan.Bookings[i].BookingID < plan.Bookings[j].BookingID
	})

	for _, seg := range sim.Segments {
		plan.Segments = append(plan.Segments, PlanSegment{
			BookingID: seg.BookingID,
			Start:     slots.FormatClock(seg.Start),
			End:       slots.FormatClock(seg.End),
		})
	}
	return plan, nil
}
