package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

func tokenID(r *http.Request) (model.TokenID, error) {
	raw := chi.URLParam(r, "tokenID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidInput, "api: token id %q", raw)
	}
	return model.TokenID(id), nil
}

func (h *handlers) listNFTs(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	nfts, err := h.deps.NFT.GetAllNFTsSimple(r.Context(), s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if nfts == nil {
		nfts = []model.NFT{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"nfts": nfts})
}

func (h *handlers) mintNFT(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var meta model.NFTMetadata
	if err := decodeJSON(r, &meta); err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := h.deps.NFT.MintSimple(r.Context(), meta, s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"token_id": id})
}

func (h *handlers) getNFT(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := tokenID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	meta, err := h.deps.NFT.GetMetadataSimple(r.Context(), id, s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if meta == nil {
		WriteError(w, r, eris.Wrapf(model.ErrNotFound, "api: nft %d", id))
		return
	}
	WriteJSON(w, http.StatusOK, model.NFT{TokenID: id, Metadata: *meta})
}

func (h *handlers) mintPassport(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var passport json.RawMessage
	if err := decodeJSON(r, &passport); err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := h.deps.NFT.MintPassport(r.Context(), passport, s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"token_id": id})
}

func (h *handlers) getPassport(w http.ResponseWriter, r *http.Request) {
	s, err := requireSession(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	id, err := tokenID(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	passport, err := h.deps.NFT.GetPassport(r.Context(), id, s.Principal)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if passport == nil {
		WriteError(w, r, eris.Wrapf(model.ErrNotFound, "api: passport %d", id))
		return
	}
	WriteJSON(w, http.StatusOK, passport)
}
