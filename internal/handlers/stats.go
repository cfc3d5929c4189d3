package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/services"
)

// StatsHandler uses the strict reads so a caller without view_stats gets a
// 403 rather than an empty summary.
type StatsHandler struct {
	stats *services.StatsService
	*scoper
}

func (h *StatsHandler) Month(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	year, month, err := period(r)
	if err != nil {
		fail(w, err)
		return
	}
	sum, err := h.stats.StrictMonthExpenses(r.Context(), userID(r), pid, year, month)
	httpx.Result(w, http.StatusOK, sum, err)
}

func (h *StatsHandler) Day(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		if day, err = time.Parse(time.DateOnly, raw); err != nil {
			fail(w, badParam("date", "invalid_date"))
			return
		}
	}
	sum, err := h.stats.StrictDayExpenses(r.Context(), userID(r), pid, day)
	httpx.Result(w, http.StatusOK, sum, err)
}

func (h *StatsHandler) Category(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	year, err := queryInt(r, "year", time.Now().UTC().Year())
	if err != nil {
		fail(w, err)
		return
	}
	sum, err := h.stats.StrictCategoryExpenses(r.Context(), userID(r), pid, id, year)
	httpx.Result(w, http.StatusOK, sum, err)
}

func (h *StatsHandler) Year(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	year, err := queryInt(r, "year", time.Now().UTC().Year())
	if err != nil {
		fail(w, err)
		return
	}
	sum, err := h.stats.StrictYearSummary(r.Context(), userID(r), pid, year)
	httpx.Result(w, http.StatusOK, sum, err)
}

func (h *StatsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	year, month, err := period(r)
	if err != nil {
		fail(w, err)
		return
	}
	cmp, err := h.stats.CompareMonths(r.Context(), userID(r), pid, year, month)
	httpx.Result(w, http.StatusOK, cmp, err)
}

func (h *StatsHandler) Totals(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	totals, err := h.stats.ScopeTotals(r.Context(), userID(r), pid)
	httpx.Result(w, http.StatusOK, totals, err)
}
