package handlers

import (
	"net/http"

	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/shopspring/decimal"
)

type BudgetHandler struct {
	budgets *services.BudgetService
	*scoper
}

func (h *BudgetHandler) Status(w http.ResponseWriter, r *http.Request) {
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
	st, err := h.budgets.BudgetStatus(r.Context(), userID(r), pid, year, month)
	httpx.Result(w, http.StatusOK, st, err)
}

func (h *BudgetHandler) Set(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID *uint           `json:"project_id"`
		Year      int             `json:"year"`
		Month     int             `json:"month"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	b, err := h.budgets.SetBudget(r.Context(), userID(r), body.ProjectID, body.Year, body.Month, body.Amount)
	httpx.Result(w, http.StatusOK, b, err)
}
