package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/platform/events"
)

// maxSlotProbes bounds the hourly probe walk when repacking a day. 48
// probes cover two full days forward from the base slot.
const maxSlotProbes = 48

// DayRescheduleInput drives a bulk repack of one doctor's day.
// TargetDate defaults to Date; BaseTime defaults to the clock time of
// the earliest appointment on the source day.
type DayRescheduleInput struct {
	StaffID    string `json:"staff_id"`
	Date       string `json:"date"`        // 2006-01-02, the day being repacked
	TargetDate string `json:"target_date"` // optional
	BaseTime   string `json:"base_time"`   // optional, 15:04
}

// DayRescheduleResult reports the outcome of a day repack. Skipped holds
// the ids of appointments left at their original slot because no free
// slot was found within the probe window.
type DayRescheduleResult struct {
	Moved   int      `json:"moved"`
	Skipped []string `json:"skipped,omitempty"`
}

// RescheduleDoctorDay moves every non-completed appointment a doctor has
// on one day to consecutive hourly slots on the target date, earliest
// first. Each appointment takes the first slot at or after the running
// base that does not collide with an appointment staying in place; once
// placed, the base advances to the hour after it, so the moved
// appointments pack back-to-back without gaps. An appointment that finds
// no free slot within the probe window is skipped and keeps its original
// time.
func (s *Service) RescheduleDoctorDay(ctx context.Context, in DayRescheduleInput) (*DayRescheduleResult, error) {
	if in.StaffID == "" || in.Date == "" {
		return nil, fmt.Errorf("%w: staff id and date are required", ErrValidation)
	}
	day, err := time.ParseInLocation(dateLayout, in.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", ErrValidation, in.Date)
	}
	targetDay := day
	if in.TargetDate != "" {
		targetDay, err = time.ParseInLocation(dateLayout, in.TargetDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: bad target date %q", ErrValidation, in.TargetDate)
		}
	}

	doctor, err := s.staff.GetByID(ctx, in.StaffID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, fmt.Errorf("%w: staff %s", ErrNotFound, in.StaffID)
		}
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if !doctor.Active || doctor.Role != identity.RoleDoctor {
		return nil, fmt.Errorf("%w: day rescheduling requires an active doctor", ErrNotAuthorized)
	}

	unlock := s.locks.Lock(in.StaffID)
	defer unlock()

	all, err := s.appts.ListByStaff(ctx, in.StaffID)
	if err != nil {
		return nil, fmt.Errorf("scan appointments: %w", err)
	}

	// Split the doctor's schedule into the day being repacked and the
	// fixed remainder it must be packed around. Only fixed appointments
	// block a probe: the moving set vacates its old slots, and slots
	// already placed in this pass are skipped over by advancing the base
	// an hour past each placement, which packs the day back-to-back.
	// ListByStaff orders by start time, so the day slice is already
	// earliest-first.
	var moving []*Appointment
	var fixed []time.Time
	for _, a := range all {
		if sameDay(a.StartTime, day) && a.Status != StatusCompleted {
			moving = append(moving, a)
		} else {
			fixed = append(fixed, a.StartTime)
		}
	}
	if len(moving) == 0 {
		return &DayRescheduleResult{}, nil
	}

	base, err := s.resolveBase(targetDay, in.BaseTime, moving[0])
	if err != nil {
		return nil, err
	}

	result := &DayRescheduleResult{}
	for _, appt := range moving {
		slot, ok := nextFreeSlot(base, fixed)
		if !ok {
			s.logger.Warn().
				Str("appointment_id", appt.ID).
				Str("staff_id", in.StaffID).
				Msg("no free slot within probe window, appointment left in place")
			result.Skipped = append(result.Skipped, appt.ID)
			fixed = append(fixed, appt.StartTime)
			continue
		}

		appt.StartTime = slot
		appt.Status = StatusRescheduled
		appendNote(appt, noteRescheduled)
		if err := s.appts.Update(ctx, appt); err != nil {
			return nil, fmt.Errorf("update appointment %s: %w", appt.ID, err)
		}

		base = slot.Add(SlotDuration)
		result.Moved++
	}

	s.bus.Publish(events.DayRescheduled, "staff", in.StaffID, map[string]any{
		"date":    in.Date,
		"moved":   result.Moved,
		"skipped": result.Skipped,
	})
	return result, nil
}

// resolveBase computes the first candidate slot on the target day: the
// explicit base time when given, otherwise the clock time of the
// earliest appointment being moved.
func (s *Service) resolveBase(targetDay time.Time, baseTime string, earliest *Appointment) (time.Time, error) {
	clock := earliest.StartTime
	if baseTime != "" {
		parsed, err := time.ParseInLocation("15:04", baseTime, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: bad base time %q", ErrValidation, baseTime)
		}
		clock = parsed
	}
	return time.Date(targetDay.Year(), targetDay.Month(), targetDay.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
}

// nextFreeSlot walks forward in one-hour steps from base until it finds
// a slot that does not collide with any occupied start time, giving up
// after maxSlotProbes probes.
func nextFreeSlot(base time.Time, occupied []time.Time) (time.Time, bool) {
	candidate := base
	for probe := 0; probe < maxSlotProbes; probe++ {
		if !collides(candidate, occupied) {
			return candidate, true
		}
		candidate = candidate.Add(time.Hour)
	}
	return time.Time{}, false
}

func collides(candidate time.Time, occupied []time.Time) bool {
	for _, o := range occupied {
		if conflicts(candidate, o) {
			return true
		}
	}
	return false
}

func appendNote(a *Appointment, note string) {
	if a.Notes == nil || *a.Notes == "" {
		a.Notes = &note
		return
	}
	combined := *a.Notes + "; " + note
	a.Notes = &combined
}
