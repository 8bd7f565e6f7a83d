// Package monitoring watches fleet ESG scores and raises alerts when a
// product's score moves.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Snapshot is the set of ESG scores visible to a principal at one moment.
type Snapshot struct {
	Principal   string                    `json:"principal"`
	Scores      map[string]model.ESGScore `json:"scores"`
	CollectedAt time.Time                 `json:"collected_at"`
}

// ProductIDs returns the snapshot's products in sorted order.
func (s *Snapshot) ProductIDs() []string {
	ids := make([]string, 0, len(s.Scores))
	for id := range s.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ScoreSource is the ESG read side of the backend.
type ScoreSource interface {
	GetAllESGScores(ctx context.Context, principal string) ([]model.ESGScore, error)
}

// Collector snapshots ESG scores for one principal.
type Collector struct {
	source    ScoreSource
	principal string
	now       func() time.Time
}

// NewCollector creates a collector reading scores as principal.
func NewCollector(source ScoreSource, principal string) *Collector {
	return &Collector{source: source, principal: principal, now: time.Now}
}

// Collect fetches every score. A product listed twice keeps its last score.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	scores, err := c.source.GetAllESGScores(ctx, c.principal)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: collect scores")
	}

	snap := &Snapshot{
		Principal:   c.principal,
		Scores:      make(map[string]model.ESGScore, len(scores)),
		CollectedAt: c.now().UTC(),
	}
	for _, s := range scores {
		snap.Scores[s.ProductID] = s
	}
	return snap, nil
}
