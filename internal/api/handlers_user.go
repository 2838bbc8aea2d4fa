package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/okx-folio/internal/models"
)

// externalID extracts the front-end user identifier from the route
func externalID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExternalID int64  `json:"externalId"`
		Username   string `json:"username"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.ExternalID == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "externalId is required")
		return
	}

	user, err := s.users.Upsert(r.Context(), req.ExternalID, req.Username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAddWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	var req struct {
		Address string `json:"address"`
		ChainID int    `json:"chainId"`
		Label   string `json:"label"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.ChainID == 0 {
		req.ChainID = 1
	}

	user, err := s.users.GetByExternalID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	wallet := &models.Wallet{
		UserID:  user.ID,
		Address: req.Address,
		ChainID: req.ChainID,
		Label:   req.Label,
	}
	if err := s.wallets.Add(r.Context(), wallet); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, wallet)
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}

	user, err := s.users.GetByExternalID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	wallets, err := s.wallets.ListByUser(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if wallets == nil {
		wallets = []models.Wallet{}
	}

	respondJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleRemoveWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := externalID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid user id")
		return
	}
	address := mux.Vars(r)["address"]

	chainID := 1
	if raw := r.URL.Query().Get("chainId"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid chainId")
			return
		}
		chainID = parsed
	}

	user, err := s.users.GetByExternalID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.wallets.Remove(r.Context(), user.ID, address, chainID); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
