// Package handlers exposes the services as a JSON API. Every handler expects
// auth.RequireAuth in front of it and answers with an apperr.Result body.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/go-expenses/auth"
	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/services"
)

const maxBody = 1 << 16

// Set groups one handler per resource.
type Set struct {
	Projects   *ProjectHandler
	Categories *CategoryHandler
	Expenses   *ExpenseHandler
	Stats      *StatsHandler
	Budgets    *BudgetHandler
}

func New(svc *services.Services) *Set {
	s := &scoper{members: svc.Members}
	return &Set{
		Projects:   &ProjectHandler{projects: svc.Projects, members: svc.Members, invitations: svc.Invitations},
		Categories: &CategoryHandler{categories: svc.Categories, scoper: s},
		Expenses:   &ExpenseHandler{expenses: svc.Expenses, scoper: s},
		Stats:      &StatsHandler{stats: svc.Stats, scoper: s},
		Budgets:    &BudgetHandler{budgets: svc.Budgets, scoper: s},
	}
}

type empty struct{}

// done answers a call that returns no value.
func done(w http.ResponseWriter, err error) {
	httpx.Result[*empty](w, http.StatusOK, nil, err)
}

func fail(w http.ResponseWriter, err error) { done(w, err) }

func userID(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

func badParam(name, code string) error {
	return apperr.InvalidFields("parse_request", map[string]string{name: code})
}

func pathID(r *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		return 0, badParam(name, "invalid_id")
	}
	return uint(n), nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("parse_request", "malformed JSON body")
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(name, "not_a_number")
	}
	return n, nil
}

// period reads ?year= and ?month=, defaulting to the current UTC month.
func period(r *http.Request) (int, int, error) {
	now := time.Now().UTC()
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		return 0, 0, err
	}
	month, err := queryInt(r, "month", int(now.Month()))
	return year, month, err
}

type scoper struct {
	members *services.MembershipService
}

// scope reads ?project=. Absent means personal scope and "active" the
// caller's active project, which falls back to personal when unset.
func (s *scoper) scope(r *http.Request) (*uint, error) {
	raw := r.URL.Query().Get("project")
	switch raw {
	case "":
		return nil, nil
	case "active":
		p, err := s.members.ActiveProject(r.Context(), userID(r))
		if err != nil || p == nil {
			return nil, err
		}
		return &p.ID, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return nil, badParam("project", "invalid_id")
	}
	id := uint(n)
	return &id, nil
}
