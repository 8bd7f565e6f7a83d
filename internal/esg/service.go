package esg

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Backend is the subset of the provenance service the fleet service reads.
type Backend interface {
	HistoryFetcher
	GetAllProducts(ctx context.Context, principal string) ([]string, error)
	CalculateESGScore(ctx context.Context, productID, principal string) (*model.ESGScore, error)
	GetAllESGScores(ctx context.Context, principal string) ([]model.ESGScore, error)
}

// ScoreView is one product's score decorated for display.
type ScoreView struct {
	model.ESGScore
	Label             string   `json:"label"`
	RefinedDistanceKm *float64 `json:"refined_distance_km,omitempty"`
}

// Report is the fleet sustainability view for one principal.
type Report struct {
	Principal   string          `json:"principal"`
	Metrics     Metrics         `json:"metrics"`
	Label       string          `json:"label"`
	Best        *model.ESGScore `json:"best,omitempty"`
	Comparisons Comparisons     `json:"comparisons"`
	Scores      []ScoreView     `json:"scores"`
	Refined     bool            `json:"refined"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// FleetService builds fleet reports from backend scores.
type FleetService struct {
	backend       Backend
	refiner       *DistanceRefiner
	refineTimeout time.Duration
	concurrency   int
}

// FleetOption configures a FleetService.
type FleetOption func(*FleetService)

// WithRefiner enables distance refinement bounded by timeout.
func WithRefiner(r *DistanceRefiner, timeout time.Duration) FleetOption {
	return func(s *FleetService) {
		s.refiner = r
		if timeout > 0 {
			s.refineTimeout = timeout
		}
	}
}

// WithFetchConcurrency bounds per-product score fetches.
func WithFetchConcurrency(n int) FleetOption {
	return func(s *FleetService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewFleetService creates a FleetService.
func NewFleetService(backend Backend, opts ...FleetOption) *FleetService {
	s := &FleetService{
		backend:       backend,
		refineTimeout: 20 * time.Second,
		concurrency:   8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report builds the fleet report for the session's principal. Refinement
// runs under its own timeout and never fails the report.
func (s *FleetService) Report(ctx context.Context, session *model.Session, refine bool) (*Report, error) {
	if err := model.RequireSession(session); err != nil {
		return nil, err
	}

	scores, err := s.collectScores(ctx, session.Principal)
	if err != nil {
		return nil, err
	}

	var refined map[string]float64
	if refine && s.refiner != nil && len(scores) > 0 {
		ids := make([]string, len(scores))
		for i, sc := range scores {
			ids[i] = sc.ProductID
		}
		rctx, cancel := context.WithTimeout(ctx, s.refineTimeout)
		refined = s.refiner.Refine(rctx, session.Principal, ids)
		cancel()
	}

	m := Aggregate(scores, refined)
	views := make([]ScoreView, len(scores))
	for i, sc := range scores {
		v := ScoreView{ESGScore: sc, Label: Label(int(sc.SustainabilityScore))}
		if d, ok := refined[sc.ProductID]; ok {
			v.RefinedDistanceKm = &d
		}
		views[i] = v
	}

	return &Report{
		Principal:   session.Principal,
		Metrics:     m,
		Label:       Label(m.AvgScore),
		Best:        SelectBestPerformer(scores),
		Comparisons: DeriveComparisons(m.TotalCO2Saved, m.TotalDistance),
		Scores:      views,
		Refined:     len(refined) > 0,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// collectScores reads all scores in one call. When the service reports none
// it falls back to scoring each owned product individually; a product whose
// fetch fails is treated as having no data.
func (s *FleetService) collectScores(ctx context.Context, principal string) ([]model.ESGScore, error) {
	scores, err := s.backend.GetAllESGScores(ctx, principal)
	if err != nil {
		return nil, eris.Wrap(err, "esg: get all scores")
	}
	if len(scores) > 0 {
		return scores, nil
	}

	ids, err := s.backend.GetAllProducts(ctx, principal)
	if err != nil {
		return nil, eris.Wrap(err, "esg: get all products")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	byIndex := make([]*model.ESGScore, len(ids))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			sc, err := s.backend.CalculateESGScore(gCtx, id, principal)
			if err != nil {
				zap.L().Debug("esg: product score failed", zap.String("product_id", id), zap.Error(err))
				return nil //nolint:nilerr // one product's failure does not fail the fleet
			}
			mu.Lock()
			byIndex[i] = sc
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "esg: collect scores")
	}

	for _, sc := range byIndex {
		if sc != nil {
			scores = append(scores, *sc)
		}
	}
	return scores, nil
}

// Score returns the service's score for a product. When the service has
// none but the product has steps, a local estimate is returned and
// estimated is true. A product with neither yields ErrNotFound.
func (s *FleetService) Score(ctx context.Context, session *model.Session, productID string) (score *model.ESGScore, estimated bool, err error) {
	if err := model.RequireSession(session); err != nil {
		return nil, false, err
	}

	score, err = s.backend.CalculateESGScore(ctx, productID, session.Principal)
	if err != nil {
		return nil, false, eris.Wrapf(err, "esg: score %s", productID)
	}
	if score != nil {
		return score, false, nil
	}

	steps, err := s.backend.GetProductHistory(ctx, productID, session.Principal)
	if err != nil {
		return nil, false, eris.Wrapf(err, "esg: history %s", productID)
	}
	if est := Estimate(productID, steps); est != nil {
		return est, true, nil
	}
	return nil, false, eris.Wrapf(model.ErrNotFound, "esg: no data for %s", productID)
}
