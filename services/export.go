package services

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"eventease/models"
	"eventease/utils"
)

var exportHeader = []string{
	"Name", "Email", "Phone", "Check-In Date", "Check-In Time", "Logout Time", "Duration",
}

// ExportAttendance serializes the reconciled list to CSV, one row per
// participant who reached attended or logged-out state. The output is
// deterministic: identical input yields byte-identical text, and the
// caller's ordering is preserved, never re-sorted.
func ExportAttendance(entries []*models.Participant) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}

	for _, p := range entries {
		if p.Status != models.AttendanceAttended {
			continue
		}
		row := []string{
			p.FullName(),
			p.Email,
			p.Phone,
			"",
			"",
			"",
			"",
		}
		if p.CheckInAt != nil {
			row[3] = utils.LocalDate(*p.CheckInAt)
			row[4] = utils.LocalClock(*p.CheckInAt)
		}
		if p.LogoutAt != nil {
			row[5] = utils.LocalClock(*p.LogoutAt)
		}
		row[6] = attendanceDuration(p)
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}
	return buf.String(), nil
}

// attendanceDuration formats logout minus check-in. Blank when the logout
// has not happened and blank for a negative delta, which can only come from
// corrupted timestamps.
func attendanceDuration(p *models.Participant) string {
	if p.CheckInAt == nil || p.LogoutAt == nil {
		return ""
	}
	d := p.LogoutAt.Sub(*p.CheckInAt)
	if d < 0 {
		return ""
	}
	return utils.FormatDuration(d)
}
