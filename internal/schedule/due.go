package schedule

import "time"

// IsDue evaluates the due predicate (§4.6) for a schedule at instant now
// (which must be UTC). A schedule is due iff its pattern fires at or
// before now and it has not already fired for that instant.
func IsDue(s TestJobSchedule, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.MaxRuns != nil && s.RunCount >= *s.MaxRuns {
		return false
	}

	switch s.ScheduleType {
	case TypeRunOnce:
		return s.LastRunTime == nil && !now.Before(*s.ScheduledTime)
	case TypeInterval:
		base := s.CreatedAt
		if s.LastRunTime != nil {
			base = *s.LastRunTime
		}
		return !now.Before(base.Add(time.Duration(s.IntervalMinutes) * time.Minute))
	case TypeWeekly:
		if _, ok := s.DaysOfWeek[int(now.Weekday())]; !ok {
			return false
		}
		return timeOfDayElapsedAndNotYetRun(s, now)
	case TypeMonthly:
		if _, ok := s.DaysOfMonth[now.Day()]; !ok {
			return false
		}
		return timeOfDayElapsedAndNotYetRun(s, now)
	default:
		return false
	}
}

// timeOfDayElapsedAndNotYetRun implements the shared Weekly/Monthly tail
// of §4.6: time_of_day has elapsed today, and the schedule has not
// already fired today at or after that time.
func timeOfDayElapsedAndNotYetRun(s TestJobSchedule, now time.Time) bool {
	if s.TimeOfDay == nil {
		return false
	}
	nowOfDay := TimeOfDay{Hour: now.Hour(), Minute: now.Minute()}
	if nowOfDay.Before(*s.TimeOfDay) {
		return false
	}

	if s.LastRunTime == nil {
		return true
	}
	last := *s.LastRunTime
	if !sameCalendarDay(last, now) {
		return true
	}
	lastOfDay := TimeOfDay{Hour: last.Hour(), Minute: last.Minute()}
	return lastOfDay.Before(*s.TimeOfDay)
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
