package http

import (
	"net/http"

	"parcelas/internal/core"
	applog "parcelas/internal/log"
)

type movementResponse struct {
	MovementID string       `json:"movementId"`
	Entries    []core.Entry `json:"entries"`
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request, owner string) {
	var req core.MovementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	req.Name = sanitizeInput(req.Name)
	req.Description = sanitizeInput(req.Description)
	req.Card = sanitizeInput(req.Card)
	req.Bank = sanitizeInput(req.Bank)

	entries, err := s.ledger.CreateMovement(r.Context(), owner, req)
	if err != nil {
		errorFor(r.Context(), applog.OpCreate, err).Write(w)
		return
	}
	s.movementsCreated.Add(1)

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(movementResponse{MovementID: entries[0].MovementID, Entries: entries}).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, owner string) {
	from, to, err := parseRange(r.URL.Query(), s.now())
	if err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	entries, err := s.ledger.ListEntries(r.Context(), owner, from, to)
	if err != nil {
		errorFor(r.Context(), applog.OpList, err).Write(w)
		return
	}
	if entries == nil {
		entries = []core.Entry{}
	}
	NewJSONResponse().Body(map[string]any{
		"from":         from,
		"to":           to,
		"transactions": entries,
	}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, owner string) {
	id := sanitizeInput(r.PathValue("id"))
	if err := s.ledger.DeleteEntry(r.Context(), owner, id); err != nil {
		errorFor(r.Context(), applog.OpDelete, err).Write(w)
		return
	}
	NoContent().Write(w)
}
