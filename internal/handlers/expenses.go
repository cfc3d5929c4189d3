package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/services"
)

type ExpenseHandler struct {
	expenses *services.ExpenseService
	*scoper
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.NewExpense
	if err := decode(r, &in); err != nil {
		fail(w, err)
		return
	}
	exp, err := h.expenses.AddExpense(r.Context(), userID(r), in)
	httpx.Result(w, http.StatusCreated, exp, err)
}

func (h *ExpenseHandler) Recent(w http.ResponseWriter, r *http.Request) {
	pid, err := h.scope(r)
	if err != nil {
		fail(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		fail(w, err)
		return
	}
	lines, err := h.expenses.RecentExpenses(r.Context(), userID(r), pid, limit)
	httpx.Result(w, http.StatusOK, lines, err)
}

func (h *ExpenseHandler) Year(w http.ResponseWriter, r *http.Request) {
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
	lines, err := h.expenses.StrictYearExpenses(r.Context(), userID(r), pid, year)
	httpx.Result(w, http.StatusOK, lines, err)
}
