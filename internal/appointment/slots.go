package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/appointment-booking/internal/timeslot"
	"github.com/medibook/appointment-booking/internal/user"
)

// AvailableSlots derives the bookable 30-minute windows for a doctor
// on a date by walking the weekly availability template and dropping
// windows that overlap an active booking. The second return value is
// false when the doctor has no template for that weekday at all, so
// callers can distinguish "not working that day" from a fully booked
// day. Pure read; nothing is reserved.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]SlotCandidate, bool, error) {
	doctor, err := s.users.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, user.ErrDoctorNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("load doctor: %w", err)
	}

	day, ok := doctor.DayTemplate(timeslot.WeekdayName(date))
	if !ok || len(day.Slots) == 0 {
		return nil, false, nil
	}

	booked, err := s.repo.ListForDoctorDay(ctx, doctorID, date, ActiveStatuses)
	if err != nil {
		return nil, false, fmt.Errorf("load booked appointments: %w", err)
	}

	seen := make(map[timeslot.TimeSlot]bool)
	var candidates []SlotCandidate

	for _, slot := range day.Slots {
		if !slot.IsAvailable {
			continue
		}

		windows, err := timeslot.Windows(slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, false, fmt.Errorf("template slot %s-%s: %w", slot.StartTime, slot.EndTime, err)
		}

		for _, w := range windows {
			// Overlapping template ranges can emit the same window
			// twice; keep one.
			if seen[w] {
				continue
			}
			seen[w] = true

			if conflictsWithBooked(w, booked) {
				continue
			}

			candidates = append(candidates, SlotCandidate{
				StartTime:   w.StartTime,
				EndTime:     w.EndTime,
				IsAvailable: true,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StartTime < candidates[j].StartTime
	})

	return candidates, true, nil
}

func conflictsWithBooked(w timeslot.TimeSlot, booked []Appointment) bool {
	for _, appt := range booked {
		if timeslot.Overlaps(w, appt.TimeSlot) {
			return true
		}
	}
	return false
}
