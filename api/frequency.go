package api

import (
	"fmt"
	"strings"

	"github.com/AlisiaBaielli/TirAImisu/db"
)

// Frequency describes a schedule for display
func Frequency(s db.Schedule) string {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case db.ScheduleDaily:
		if len(s.Times) == 0 {
			return "daily"
		}

		return "daily at " + strings.Join(s.Times, ", ")

	case db.ScheduleWeekly:
		out := "weekly"
		if day := strings.ToLower(strings.TrimSpace(s.Day)); day != "" {
			out += " on " + day
		}

		at := s.Time
		if at == "" && len(s.Times) > 0 {
			at = strings.Join(s.Times, ", ")
		}

		if at != "" {
			out += " at " + at
		}

		return out

	case db.ScheduleAsNeeded:
		if s.MaxPerDay > 0 {
			return fmt.Sprintf("as needed (max %d/day)", s.MaxPerDay)
		}

		return "as needed"
	}

	return "unspecified"
}
