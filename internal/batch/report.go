package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Report is a finished batch, as shown to users and kept in the journal.
type Report struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Entries    []Entry   `json:"entries"`
}

func NewReport(operation string, startedAt time.Time, result Result) *Report {
	return &Report{
		ID:         uuid.New().String(),
		Operation:  operation,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Entries:    result.Entries(),
	}
}

func (r *Report) GetID() string {
	return r.ID
}

func (r *Report) Result() Result {
	result := make(Result, len(r.Entries))
	for _, e := range r.Entries {
		result[e.Key] = e.Outcome
	}
	return result
}

// Summary renders the report as plain text, one line per item.
func (r *Report) Summary() string {
	var ok, failed int
	for _, e := range r.Entries {
		if e.Status == Succeeded {
			ok++
		} else {
			failed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s results: %d succeeded, %d failed\n", r.Operation, ok, failed)
	for _, e := range r.Entries {
		switch {
		case e.Status == Succeeded && e.Detail != "":
			fmt.Fprintf(&b, "• %s: succeeded (%s)\n", e.Key, e.Detail)
		case e.Status == Succeeded:
			fmt.Fprintf(&b, "• %s: succeeded\n", e.Key)
		default:
			fmt.Fprintf(&b, "• %s: failed: %s\n", e.Key, e.Reason)
		}
	}
	return b.String()
}
