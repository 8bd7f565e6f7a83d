// Package nft is the client for the product passport NFT service.
package nft

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/pkg/backend"
)

// Client defines the NFT service operations.
type Client interface {
	MintSimple(ctx context.Context, meta model.NFTMetadata, principal string) (model.TokenID, error)
	// GetMetadataSimple returns nil when the token does not exist.
	GetMetadataSimple(ctx context.Context, id model.TokenID, principal string) (*model.NFTMetadata, error)
	GetAllNFTsSimple(ctx context.Context, principal string) ([]model.NFT, error)
	// MintPassport stores a JSON passport document and returns its token.
	MintPassport(ctx context.Context, passport json.RawMessage, principal string) (model.TokenID, error)
	// GetPassport returns nil when the passport does not exist.
	GetPassport(ctx context.Context, id model.TokenID, principal string) (json.RawMessage, error)
}

type httpClient struct {
	t *backend.Transport
}

// NewClient creates an NFT client for the service at baseURL.
func NewClient(baseURL string, opts ...backend.TransportOption) Client {
	return &httpClient{t: backend.NewTransport("nft", baseURL, opts...)}
}

type mintResponse struct {
	TokenID model.TokenID `json:"token_id"`
}

func tokenPath(prefix string, id model.TokenID) string {
	return prefix + "/" + strconv.FormatUint(uint64(id), 10)
}

func (c *httpClient) MintSimple(ctx context.Context, meta model.NFTMetadata, principal string) (model.TokenID, error) {
	if err := model.Validate(&meta); err != nil {
		return 0, err
	}
	if meta.History == nil {
		meta.History = []string{}
	}
	var out mintResponse
	if _, err := c.t.Do(ctx, http.MethodPost, "/nfts", principal, meta, &out); err != nil {
		return 0, eris.Wrap(err, "nft: mint")
	}
	return out.TokenID, nil
}

func (c *httpClient) GetMetadataSimple(ctx context.Context, id model.TokenID, principal string) (*model.NFTMetadata, error) {
	var meta *model.NFTMetadata
	found, err := c.t.Do(ctx, http.MethodGet, tokenPath("/nfts", id), principal, nil, &meta)
	if err != nil {
		return nil, eris.Wrapf(err, "nft: get metadata %d", id)
	}
	if !found {
		return nil, nil
	}
	return meta, nil
}

func (c *httpClient) GetAllNFTsSimple(ctx context.Context, principal string) ([]model.NFT, error) {
	var nfts []model.NFT
	if _, err := c.t.Do(ctx, http.MethodGet, "/nfts", principal, nil, &nfts); err != nil {
		return nil, eris.Wrap(err, "nft: list")
	}
	return nfts, nil
}

func (c *httpClient) MintPassport(ctx context.Context, passport json.RawMessage, principal string) (model.TokenID, error) {
	if !json.Valid(passport) {
		return 0, eris.Wrap(model.ErrInvalidInput, "nft: passport is not valid JSON")
	}
	body := struct {
		Data string `json:"data"`
	}{Data: string(passport)}

	var out mintResponse
	if _, err := c.t.Do(ctx, http.MethodPost, "/passports", principal, body, &out); err != nil {
		return 0, eris.Wrap(err, "nft: mint passport")
	}
	return out.TokenID, nil
}

func (c *httpClient) GetPassport(ctx context.Context, id model.TokenID, principal string) (json.RawMessage, error) {
	var out struct {
		Data *string `json:"data"`
	}
	found, err := c.t.Do(ctx, http.MethodGet, tokenPath("/passports", id), principal, nil, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "nft: get passport %d", id)
	}
	if !found || out.Data == nil {
		return nil, nil
	}
	return json.RawMessage(*out.Data), nil
}
