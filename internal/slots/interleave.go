package slots

import (
	"fmt"
	"sort"
	"strings"

	"giftwrap/internal/model"
)

// DefaultClosingBufferMinutes is the completion allowance past the last slot.
const DefaultClosingBufferMinutes = 60

// Job is one booking's wrapping work on the shared worker.
type Job struct {
	BookingID int64
	Label     string
	Start     int // minutes since midnight
	Duration  int
	Category  model.Category
	Candidate bool
}

// Segment is a continuous stretch of work on a single job.
type Segment struct {
	BookingID int64 `json:"booking_id"`
	Start     int   `json:"start"`
	End       int   `json:"end"`
	Candidate bool  `json:"candidate,omitempty"`
}

// Plan is the outcome of simulating a day's work.
type Plan struct {
	Finish     int
	Segments   []Segment
	Completion map[int64]int
}

// Decision is the verdict on fitting a candidate booking into a day.
type Decision struct {
	Accepted      bool
	Reason        string
	FinishMinutes int
	Ceiling       int
	Conflicts     []Job
	Segments      []Segment
}

// Ceiling is the latest minute work may finish: last slot start, one slot
// width and the closing buffer.
func Ceiling(base []string, closingBufferMinutes int) (int, error) {
	if len(base) == 0 {
		return 0, fmt.Errorf("no base slots")
	}
	last := -1
	for _, slot := range base {
		t, err := ParseClock(slot)
		if err != nil {
			return 0, fmt.Errorf("base slot: %w", err)
		}
		if t > last {
			last = t
		}
	}
	return last + 60 + closingBufferMinutes, nil
}

type work struct {
	job       *Job
	remaining int
}

type simulation struct {
	current  int
	queue    []*work
	segments []Segment
	done     map[int64]int
}

// Simulate runs the jobs through a single worker. Jobs arrive at their start
// time; a newly arrived job is worked first until the next arrival, older
// unfinished work resumes in arrival order whenever the worker is free.
func Simulate(jobs []Job) Plan {
	if len(jobs) == 0 {
		return Plan{Completion: map[int64]int{}}
	}

	sorted := append([]Job(nil), jobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Candidate != b.Candidate {
			return !a.Candidate
		}
		return a.BookingID < b.BookingID
	})

	sim := &simulation{current: sorted[0].Start, done: make(map[int64]int, len(sorted))}
	for i := range sorted {
		job := &sorted[i]
		sim.drainUntil(job.Start)

		w := &work{job: job, remaining: job.Duration}
		sim.queue = append(sim.queue, w)
		if sim.current < job.Start {
			sim.current = job.Start
		}

		if i+1 < len(sorted) {
			gap := sorted[i+1].Start - sim.current
			if gap < w.remaining {
				sim.run(w, gap)
				continue
			}
		}
		sim.run(w, w.remaining)
		sim.finish(w)
	}

	for len(sim.queue) > 0 {
		head := sim.queue[0]
		sim.run(head, head.remaining)
		sim.finish(head)
	}

	return Plan{Finish: sim.current, Segments: sim.segments, Completion: sim.done}
}

func (s *simulation) drainUntil(t int) {
	for len(s.queue) > 0 && s.current < t {
		head := s.queue[0]
		s.run(head, min(head.remaining, t-s.current))
		if head.remaining > 0 {
			return
		}
		s.finish(head)
	}
}

func (s *simulation) run(w *work, minutes int) {
	if minutes <= 0 {
		return
	}
	start := s.current
	s.current += minutes
	w.remaining -= minutes

	if n := len(s.segments); n > 0 {
		last := &s.segments[n-1]
		if last.End == start && last.BookingID == w.job.BookingID && last.Candidate == w.job.Candidate {
			last.End = s.current
			return
		}
	}
	s.segments = append(s.segments, Segment{
		BookingID: w.job.BookingID,
		Start:     start,
		End:       s.current,
		Candidate: w.job.Candidate,
	})
}

func (s *simulation) finish(w *work) {
	for i, q := range s.queue {
		if q == w {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	if !w.job.Candidate {
		s.done[w.job.BookingID] = s.current
	}
}

// CanScheduleBooking decides whether candidate fits next to existing on the
// same day. Only the busy period the candidate's work falls in is judged:
// when it runs past the ceiling and any booking in it needs in-person pickup,
// the candidate is rejected.
func CanScheduleBooking(candidate Job, existing []Job, base []string, closingBufferMinutes int) (Decision, error) {
	ceiling, err := Ceiling(base, closingBufferMinutes)
	if err != nil {
		return Decision{}, err
	}

	candidate.Candidate = true
	jobs := make([]Job, 0, len(existing)+1)
	for _, j := range existing {
		j.Candidate = false
		jobs = append(jobs, j)
	}
	jobs = append(jobs, candidate)

	plan := Simulate(jobs)
	d := Decision{
		Accepted:      true,
		FinishMinutes: plan.Finish,
		Ceiling:       ceiling,
		Segments:      plan.Segments,
	}
	if plan.Finish <= ceiling {
		return d, nil
	}

	members, periodEnd, ok := candidatePeriod(plan.Segments)
	if !ok || periodEnd <= ceiling {
		return d, nil
	}

	var pickup bool
	var conflicts []Job
	if candidate.Category.RequiresPickup() {
		pickup = true
	}
	for _, j := range existing {
		if _, in := members[j.BookingID]; !in {
			continue
		}
		conflicts = append(conflicts, j)
		if j.Category.RequiresPickup() {
			pickup = true
		}
	}
	if !pickup {
		return d, nil
	}

	d.Accepted = false
	d.Conflicts = conflicts
	d.Reason = overrunReason(periodEnd, ceiling, conflicts)
	return d, nil
}

// candidatePeriod finds the maximal run of back-to-back segments containing
// the candidate and returns the existing bookings worked on inside it.
func candidatePeriod(segments []Segment) (map[int64]struct{}, int, bool) {
	start := 0
	for start < len(segments) {
		end := start
		for end+1 < len(segments) && segments[end+1].Start == segments[end].End {
			end++
		}

		members := make(map[int64]struct{})
		hasCandidate := false
		for _, seg := range segments[start : end+1] {
			if seg.Candidate {
				hasCandidate = true
				continue
			}
			members[seg.BookingID] = struct{}{}
		}
		if hasCandidate {
			return members, segments[end].End, true
		}
		start = end + 1
	}
	return nil, 0, false
}

func overrunReason(finish, ceiling int, conflicts []Job) string {
	msg := fmt.Sprintf("wrapping would finish at %s, after the %s closing limit", FormatClock(finish), FormatClock(ceiling))
	if len(conflicts) > 0 {
		parts := make([]string, 0, len(conflicts))
		for _, c := range conflicts {
			label := fmt.Sprintf("booking #%d at %s", c.BookingID, FormatClock(c.Start))
			if c.Label != "" {
				label = fmt.Sprintf("booking #%d (%s) at %s", c.BookingID, c.Label, FormatClock(c.Start))
			}
			parts = append(parts, label)
		}
		msg += "; overlaps with " + strings.Join(parts, ", ")
	}
	return msg + "; choose an earlier slot or a delivery service"
}
