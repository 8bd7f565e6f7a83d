// Package backend is the client for the provenance and ESG service. Every
// call is scoped to the caller's principal.
package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Client defines the provenance service operations.
type Client interface {
	// GetProductHistory returns the product's steps oldest first, or an
	// empty slice when the product is unknown to the principal.
	GetProductHistory(ctx context.Context, productID, principal string) ([]model.Step, error)
	GetAllProducts(ctx context.Context, principal string) ([]string, error)
	// AddStep validates and records a step, returning the service's
	// confirmation message.
	AddStep(ctx context.Context, in model.StepInput, principal string) (string, error)
	GetTotalStepsCount(ctx context.Context, principal string) (uint64, error)
	GetCanisterInfo(ctx context.Context, principal string) (string, error)
	// CalculateESGScore returns nil when the product has no score.
	CalculateESGScore(ctx context.Context, productID, principal string) (*model.ESGScore, error)
	GetAllESGScores(ctx context.Context, principal string) ([]model.ESGScore, error)
}

// RejectedError is a step the service refused to record. It matches
// model.ErrInvalidInput.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return "backend: step rejected: " + e.Message }

func (e *RejectedError) Is(target error) bool { return target == model.ErrInvalidInput }

type httpClient struct {
	t *Transport
}

// NewClient creates a provenance client for the service at baseURL.
func NewClient(baseURL string, opts ...TransportOption) Client {
	return &httpClient{t: NewTransport("backend", baseURL, opts...)}
}

func productPath(productID, suffix string) string {
	return "/products/" + url.PathEscape(productID) + suffix
}

func (c *httpClient) GetProductHistory(ctx context.Context, productID, principal string) ([]model.Step, error) {
	var steps []model.Step
	if _, err := c.t.Do(ctx, http.MethodGet, productPath(productID, "/history"), principal, nil, &steps); err != nil {
		return nil, eris.Wrapf(err, "backend: get product history %s", productID)
	}
	if steps == nil {
		steps = []model.Step{}
	}
	return steps, nil
}

func (c *httpClient) GetAllProducts(ctx context.Context, principal string) ([]string, error) {
	var ids []string
	if _, err := c.t.Do(ctx, http.MethodGet, "/products", principal, nil, &ids); err != nil {
		return nil, eris.Wrap(err, "backend: get all products")
	}
	return ids, nil
}

// addStepResult is the service's Ok/Err variant.
type addStepResult struct {
	Ok  *string `json:"ok,omitempty"`
	Err *string `json:"err,omitempty"`
}

func (c *httpClient) AddStep(ctx context.Context, in model.StepInput, principal string) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}

	var res addStepResult
	_, err := c.t.Do(ctx, http.MethodPost, "/steps", principal, in, &res)
	if err != nil {
		var se *StatusError
		if eris.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			return "", &RejectedError{Message: se.Message}
		}
		return "", eris.Wrapf(err, "backend: add step for %s", in.ProductID)
	}
	if res.Err != nil {
		return "", &RejectedError{Message: *res.Err}
	}
	if res.Ok == nil {
		return "Step added for product " + in.ProductID, nil
	}
	return *res.Ok, nil
}

func (c *httpClient) GetTotalStepsCount(ctx context.Context, principal string) (uint64, error) {
	var out struct {
		Count uint64 `json:"count"`
	}
	if _, err := c.t.Do(ctx, http.MethodGet, "/steps/count", principal, nil, &out); err != nil {
		return 0, eris.Wrap(err, "backend: get total steps count")
	}
	return out.Count, nil
}

func (c *httpClient) GetCanisterInfo(ctx context.Context, principal string) (string, error) {
	var out struct {
		Info string `json:"info"`
	}
	if _, err := c.t.Do(ctx, http.MethodGet, "/info", principal, nil, &out); err != nil {
		return "", eris.Wrap(err, "backend: get canister info")
	}
	return strings.TrimSpace(out.Info), nil
}

func (c *httpClient) CalculateESGScore(ctx context.Context, productID, principal string) (*model.ESGScore, error) {
	var score *model.ESGScore
	found, err := c.t.Do(ctx, http.MethodGet, productPath(productID, "/esg"), principal, nil, &score)
	if err != nil {
		return nil, eris.Wrapf(err, "backend: calculate esg score %s", productID)
	}
	if !found {
		return nil, nil
	}
	return score, nil
}

func (c *httpClient) GetAllESGScores(ctx context.Context, principal string) ([]model.ESGScore, error) {
	var scores []model.ESGScore
	if _, err := c.t.Do(ctx, http.MethodGet, "/esg", principal, nil, &scores); err != nil {
		return nil, eris.Wrap(err, "backend: get all esg scores")
	}
	return scores, nil
}
