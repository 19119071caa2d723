// Package journal keeps the reports of finished batch operations so that
// users can look at what a bulk delete or post update did after the fact.
package journal

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"postbot/internal/batch"
	"postbot/internal/storage"
)

const prefix = "report"

// entry orders reports by completion time in the key space.
type entry struct {
	Seq string `json:"seq"`
	*batch.Report
}

func (e *entry) GetID() string {
	return e.Seq
}

type Journal struct {
	store *storage.BadgerStore[*entry]
}

func New(db *badger.DB, codec *storage.Codec) *Journal {
	return &Journal{store: storage.NewBadgerStore[*entry](db, prefix, codec)}
}

func (j *Journal) Record(report *batch.Report) error {
	seq := fmt.Sprintf("%020d-%s", report.FinishedAt.UnixNano(), report.ID)
	if err := j.store.Create(&entry{Seq: seq, Report: report}); err != nil {
		return fmt.Errorf("recording report %s: %w", report.ID, err)
	}
	return nil
}

// List returns up to limit reports, newest first. A non-positive limit
// returns all of them.
func (j *Journal) List(limit int) ([]*batch.Report, error) {
	entries, err := j.store.List(storage.ListOptions{Limit: limit, Reverse: true})
	if err != nil {
		return nil, err
	}
	reports := make([]*batch.Report, 0, len(entries))
	for _, e := range entries {
		reports = append(reports, e.Report)
	}
	return reports, nil
}
