package http

import (
	"net/http"
	"strings"

	"parcelas/internal/core"
	applog "parcelas/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, owner string) {
	typ := core.TransactionType(strings.ToLower(sanitizeInput(r.URL.Query().Get("type"))))
	cats, err := s.ledger.ListCategories(r.Context(), owner, typ)
	if err != nil {
		errorFor(r.Context(), applog.OpList, err).Write(w)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, owner string) {
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	c.Name = sanitizeInput(c.Name)
	c.Icon = sanitizeInput(c.Icon)

	created, err := s.ledger.CreateCategory(r.Context(), owner, c)
	if err != nil {
		errorFor(r.Context(), applog.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.ledger.DeleteCategory(r.Context(), owner, sanitizeInput(r.PathValue("id"))); err != nil {
		errorFor(r.Context(), applog.OpDelete, err).Write(w)
		return
	}
	NoContent().Write(w)
}

// Responsibles are shared across owners; the owner header is still required.
func (s *Server) handleListResponsibles(w http.ResponseWriter, r *http.Request, _ string) {
	list, err := s.ledger.ListResponsibles(r.Context())
	if err != nil {
		errorFor(r.Context(), applog.OpList, err).Write(w)
		return
	}
	if list == nil {
		list = []core.Responsible{}
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleCreateResponsible(w http.ResponseWriter, r *http.Request, _ string) {
	var resp core.Responsible
	if err := decodeJSON(w, r, &resp); err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	resp.Name = sanitizeInput(resp.Name)
	resp.Color = sanitizeInput(resp.Color)

	created, err := s.ledger.CreateResponsible(r.Context(), resp)
	if err != nil {
		errorFor(r.Context(), applog.OpCreate, err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleDeleteResponsible(w http.ResponseWriter, r *http.Request, _ string) {
	if err := s.ledger.DeleteResponsible(r.Context(), sanitizeInput(r.PathValue("id"))); err != nil {
		errorFor(r.Context(), applog.OpDelete, err).Write(w)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, owner string) {
	us, err := s.ledger.GetSettings(r.Context(), owner)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"currency":   us.Currency,
		"currencies": core.Currencies(),
	}).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, owner string) {
	var us core.UserSettings
	if err := decodeJSON(w, r, &us); err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	saved, err := s.ledger.UpdateSettings(r.Context(), owner, us)
	if err != nil {
		errorFor(r.Context(), applog.OpUpdate, err).Write(w)
		return
	}
	NewJSONResponse().Body(saved).Write(w)
}
