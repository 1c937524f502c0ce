package diagnose

import (
	"time"

	"github.com/heizmon/heizdiag/probe"
)

// Exit codes for the diagnose command. Automation keys off these: 0 means
// the pipeline is delivering data, 2 means it is not.
const (
	ExitHealthy  = 0
	ExitDegraded = 1
	ExitFailing  = 2
)

// ExitCode maps an overall status to the command exit code.
func ExitCode(status probe.Status) int {
	switch status {
	case probe.StatusHealthy:
		return ExitHealthy
	case probe.StatusFailing:
		return ExitFailing
	default:
		return ExitDegraded
	}
}

// ResultView is the serializable form of one probe result.
type ResultView struct {
	Subsystem  string           `json:"subsystem"`
	Identifier string           `json:"identifier"`
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Evidence   []probe.Evidence `json:"evidence,omitempty"`
	Error      string           `json:"error,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
}

// Report is the serializable form of a snapshot, ordered deterministically.
type Report struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Overall     string       `json:"overall"`
	Results     []ResultView `json:"results"`
}

// NewReport renders a snapshot for serialization.
func NewReport(s *Snapshot) Report {
	sorted := s.Sorted()
	views := make([]ResultView, 0, len(sorted))
	for _, res := range sorted {
		view := ResultView{
			Subsystem:  res.Subsystem.String(),
			Identifier: res.Identifier,
			Status:     res.Status.String(),
			Message:    res.Message,
			Evidence:   res.Evidence,
			ObservedAt: res.ObservedAt,
		}
		if res.Err != nil {
			view.Error = res.Err.Error()
		}
		views = append(views, view)
	}

	return Report{
		GeneratedAt: s.GeneratedAt,
		Overall:     s.Overall().String(),
		Results:     views,
	}
}
