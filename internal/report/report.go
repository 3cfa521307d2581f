// Package report builds link-check reports from recorded run data. Generation
// is a pure function of the run record so re-generating a report for the same
// run always yields the same result.
package report

import (
	"time"

	"github.com/JakeFAU/linkrover/internal/checker"
)

// Summary aggregates the terminal statuses of a run.
type Summary struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Redirected int `json:"redirected"`
	Broken     int `json:"broken"`
	Skipped    int `json:"skipped"`
}

// Entry is one reported link, in discovery order.
type Entry struct {
	Source       string             `json:"source"`
	TargetURL    string             `json:"target_url"`
	Status       checker.LinkStatus `json:"status"`
	Reason       string             `json:"reason,omitempty"`
	RedirectedTo string             `json:"redirected_to,omitempty"`
	StatusCode   int                `json:"status_code,omitempty"`
	Attempts     int                `json:"attempts"`
	Duration     time.Duration      `json:"duration"`
}

// Report is the generated artifact content for a single run.
type Report struct {
	RunID      string     `json:"run_id"`
	RunStatus  string     `json:"run_status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	// Partial marks reports generated from runs that did not complete
	// normally; the entries cover only the links checked before the run
	// ended.
	Partial bool    `json:"partial"`
	Summary Summary `json:"summary"`
	Entries []Entry `json:"entries"`
}

// Generate builds a Report from a run record. Records that are still pending
// are excluded; everything else is reported in the order it was discovered.
func Generate(run checker.CheckRun) Report {
	rep := Report{
		RunID:      run.ID,
		RunStatus:  string(run.Status),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Partial:    run.Status != checker.RunCompleted,
		Entries:    make([]Entry, 0, len(run.Records)),
	}
	for _, rec := range run.Records {
		if rec.Status == checker.LinkPending {
			continue
		}
		rep.Entries = append(rep.Entries, Entry{
			Source:       rec.Source,
			TargetURL:    rec.TargetURL,
			Status:       rec.Status,
			Reason:       rec.Reason,
			RedirectedTo: rec.RedirectedTo,
			StatusCode:   rec.StatusCode,
			Attempts:     rec.AttemptCount,
			Duration:     rec.Duration,
		})
		rep.Summary.Total++
		switch rec.Status {
		case checker.LinkValid:
			rep.Summary.Valid++
		case checker.LinkRedirected:
			rep.Summary.Redirected++
		case checker.LinkBroken:
			rep.Summary.Broken++
		case checker.LinkSkipped:
			rep.Summary.Skipped++
		}
	}
	return rep
}

// Healthy reports whether the run finished with no broken links.
func (r Report) Healthy() bool {
	return !r.Partial && r.Summary.Broken == 0
}
