package reconcile

import "time"

// OutcomeKind classifies what reconciliation did with one event
type OutcomeKind string

const (
	// OutcomeApplied means local state changed
	OutcomeApplied OutcomeKind = "applied"
	// OutcomeNoChange means the event re-confirmed existing state
	OutcomeNoChange OutcomeKind = "no_change"
	// OutcomeSkipped means the event lost a conflict or was superseded
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeFailed means the event needs manual intervention
	OutcomeFailed OutcomeKind = "failed"
)

// String returns the string representation of OutcomeKind
func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome is the result of reconciling one event
type Outcome struct {
	Kind  OutcomeKind
	Notes string
}

// Applied reports a state change
func Applied(notes string) Outcome {
	return Outcome{Kind: OutcomeApplied, Notes: notes}
}

// NoChange reports an idempotent re-confirmation
func NoChange(notes string) Outcome {
	return Outcome{Kind: OutcomeNoChange, Notes: notes}
}

// Skipped reports a lost conflict
func Skipped(notes string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Notes: notes}
}

// Failed reports an event that needs manual intervention
func Failed(notes string) Outcome {
	return Outcome{Kind: OutcomeFailed, Notes: notes}
}

// Summary aggregates the outcomes of one reconciliation pass
type Summary struct {
	Processed  int       `json:"processed"`
	Applied    int       `json:"applied"`
	NoChange   int       `json:"no_change"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// add counts one outcome
func (s *Summary) add(outcome Outcome) {
	s.Processed++
	switch outcome.Kind {
	case OutcomeApplied:
		s.Applied++
	case OutcomeNoChange:
		s.NoChange++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}
