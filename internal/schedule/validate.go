package schedule

import "fmt"

// Validate enforces the create/update invariants §3 lists for a
// TestJobSchedule: each ScheduleType requires a specific set of fields.
func Validate(s TestJobSchedule) error {
	if s.LobID == "" || s.TeamID == "" {
		return ErrInvalidSchedule("schedule requires lob_id and team_id")
	}
	if s.RepoURL == "" || s.TestImageType == "" {
		return ErrInvalidSchedule("schedule requires repo_url and test_image_type")
	}

	switch s.ScheduleType {
	case TypeRunOnce:
		if s.ScheduledTime == nil {
			return ErrInvalidSchedule("RunOnce schedule requires scheduled_time")
		}
	case TypeInterval:
		if s.IntervalMinutes <= 0 {
			return ErrInvalidSchedule("Interval schedule requires interval_minutes > 0")
		}
	case TypeWeekly:
		if len(s.DaysOfWeek) == 0 {
			return ErrInvalidSchedule("Weekly schedule requires non-empty days_of_week")
		}
		if s.TimeOfDay == nil {
			return ErrInvalidSchedule("Weekly schedule requires time_of_day")
		}
	case TypeMonthly:
		if len(s.DaysOfMonth) == 0 {
			return ErrInvalidSchedule("Monthly schedule requires non-empty days_of_month")
		}
		if s.TimeOfDay == nil {
			return ErrInvalidSchedule("Monthly schedule requires time_of_day")
		}
	default:
		return ErrInvalidSchedule(fmt.Sprintf("unknown schedule_type %q", s.ScheduleType))
	}
	return nil
}
