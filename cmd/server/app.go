package main

import (
	"net/http"

	"github.com/diewo77/go-expenses/auth"
	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/config"
	"github.com/diewo77/go-expenses/internal/handlers"
	"github.com/diewo77/go-expenses/internal/services"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux  *http.ServeMux
	h    *handlers.Set
	auth config.AuthConfig
}

// NewApp creates a new application with all routes configured.
func NewApp(svc *services.Services, authCfg config.AuthConfig) *App {
	app := &App{
		mux:  http.NewServeMux(),
		h:    handlers.New(svc),
		auth: authCfg,
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.auth.Secret, a.auth.Issuer)(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Projects, membership and invitations
	// ─────────────────────────────────────────────────────────────────────────
	ph := a.h.Projects
	a.route("GET /api/projects", ph.List)
	a.route("POST /api/projects", ph.Create)
	a.route("GET /api/projects/{id}", ph.View)
	a.route("DELETE /api/projects/{id}", ph.Delete)
	a.route("POST /api/projects/{id}/leave", ph.Leave)
	a.route("GET /api/projects/{id}/stats", ph.Stats)
	a.route("GET /api/projects/{id}/members", ph.Members)
	a.route("PUT /api/projects/{id}/members/{user}", ph.ChangeRole)
	a.route("DELETE /api/projects/{id}/members/{user}", ph.Kick)
	a.route("POST /api/projects/{id}/invitations", ph.Invite)
	a.route("POST /api/invitations/{token}/redeem", ph.Redeem)
	a.route("GET /api/me/active-project", ph.Active)
	a.route("PUT /api/me/active-project", ph.SetActive)

	// ─────────────────────────────────────────────────────────────────────────
	// Categories and ledger
	// ─────────────────────────────────────────────────────────────────────────
	ch := a.h.Categories
	a.route("GET /api/categories", ch.List)
	a.route("POST /api/categories", ch.Create)
	a.route("DELETE /api/categories/{id}", ch.Deactivate)
	a.route("POST /api/categories/{id}/transfer", ch.Transfer)

	eh := a.h.Expenses
	a.route("POST /api/expenses", eh.Create)
	a.route("GET /api/expenses/recent", eh.Recent)
	a.route("GET /api/expenses", eh.Year)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregation and budgets
	// ─────────────────────────────────────────────────────────────────────────
	sh := a.h.Stats
	a.route("GET /api/stats/month", sh.Month)
	a.route("GET /api/stats/day", sh.Day)
	a.route("GET /api/stats/category/{id}", sh.Category)
	a.route("GET /api/stats/year", sh.Year)
	a.route("GET /api/stats/compare", sh.Compare)
	a.route("GET /api/stats/totals", sh.Totals)

	bh := a.h.Budgets
	a.route("GET /api/budgets", bh.Status)
	a.route("PUT /api/budgets", bh.Set)
}

// route registers an authenticated endpoint.
func (a *App) route(pattern string, h http.HandlerFunc) {
	a.mux.Handle(pattern, auth.RequireAuth(h))
}
