package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/selecta/internal/models"
)

// StatusReport is the data behind `selecta status`.
type StatusReport struct {
	Database   string
	Total      int
	ByFormat   map[models.Format]int
	Recent     int
	RecentDays int
	WithCredit int
	Engineers  int
	Runs       []*models.JobRun
}

// RenderStatus formats report as a styled multi-section block.
func RenderStatus(report StatusReport) string {
	var b strings.Builder
	row := func(label string, value any) {
		fmt.Fprintf(&b, "%s %v\n", styles.label.Render(label), value)
	}

	b.WriteString(styles.heading.Render("Library") + "\n")
	row("Database", report.Database)
	row("Tracks", report.Total)
	for _, f := range []models.Format{models.FormatDolbyAtmos, models.FormatSpatialAudio, models.FormatStereo} {
		row(string(f), fmt.Sprintf("%d %s", report.ByFormat[f], styles.Format(f)))
	}
	row(fmt.Sprintf("Last %d days", report.RecentDays), report.Recent)
	row("With credits", report.WithCredit)
	row("Engineers", report.Engineers)

	b.WriteString(styles.heading.Render("Recent jobs") + "\n")
	if len(report.Runs) == 0 {
		b.WriteString(styles.muted.Render("no runs recorded") + "\n")
		return b.String()
	}

	for _, run := range report.Runs {
		fmt.Fprintf(&b, "%s %s %s  +%d ~%d of %d  %s",
			styles.label.Render(run.Job),
			run.StartedAt.Local().Format(time.DateTime),
			styles.Status(run.Status),
			run.Outcome.Added, run.Outcome.Updated, run.Outcome.Processed,
			run.Duration().Round(time.Second),
		)
		if run.Error != "" {
			fmt.Fprintf(&b, "  %s", styles.bad.Render(run.Error))
		}
		b.WriteString("\n")
	}
	return b.String()
}
