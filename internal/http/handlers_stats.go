package http

import (
	"context"
	"net/http"

	"parcelas/internal/core"
	applog "parcelas/internal/log"
)

type historyResponse struct {
	Timeframe core.Timeframe      `json:"timeframe"`
	Year      int                 `json:"year"`
	Month     int                 `json:"month,omitempty"`
	Data      []core.HistoryPoint `json:"data"`
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request, owner string) {
	from, to, err := parseRange(r.URL.Query(), s.now())
	if err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	stats, err := s.ledger.CategoryStats(r.Context(), owner, from, to)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}
	if stats == nil {
		stats = []core.CategoryStat{}
	}
	NewJSONResponse().Body(stats).Write(w)
}

func (s *Server) handleBalanceStats(w http.ResponseWriter, r *http.Request, owner string) {
	from, to, err := parseRange(r.URL.Query(), s.now())
	if err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	balance, err := s.ledger.BalanceStats(r.Context(), owner, from, to)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(formatBalance(balance, s.currencyFor(r.Context(), owner))).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, owner string) {
	from, to, err := parseRange(r.URL.Query(), s.now())
	if err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	ov, err := s.ledger.Overview(r.Context(), owner, from, to)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}
	if ov.Categories == nil {
		ov.Categories = []core.CategoryStat{}
	}
	NewJSONResponse().Body(map[string]any{
		"from":       from,
		"to":         to,
		"balance":    formatBalance(ov.Balance, ov.Currency),
		"categories": ov.Categories,
	}).Write(w)
}

func (s *Server) handleHistoryData(w http.ResponseWriter, r *http.Request, owner string) {
	tf, period, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		errorFor(r.Context(), applog.OpParse, err).Write(w)
		return
	}
	points, err := s.ledger.PeriodSeries(r.Context(), owner, tf, period)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}

	resp := historyResponse{Timeframe: tf, Year: period.Year, Data: points}
	if tf == core.TimeframeMonth {
		resp.Month = period.Month
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleHistoryPeriods(w http.ResponseWriter, r *http.Request, owner string) {
	years, err := s.ledger.DistinctYears(r.Context(), owner)
	if err != nil {
		errorFor(r.Context(), applog.OpRead, err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"years": years}).Write(w)
}

// currencyFor returns the owner's display currency. Formatting is
// presentation only, so a settings failure falls back to the default.
func (s *Server) currencyFor(ctx context.Context, owner string) string {
	us, err := s.ledger.GetSettings(ctx, owner)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Settings lookup failed, using default currency",
			applog.FieldError, err.Error())
		return core.DefaultCurrency
	}
	return us.Currency
}
