package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-expenses/auth"
	"github.com/diewo77/go-expenses/internal/config"
	"github.com/diewo77/go-expenses/internal/db"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = config.AuthConfig{Secret: "app-test", Issuer: "expenses-test", TokenTTL: time.Hour}

type apiResult struct {
	Success bool              `json:"success"`
	Kind    string            `json:"error_kind"`
	Fields  map[string]string `json:"fields"`
	Value   json.RawMessage   `json:"value"`
}

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		RawDSN:       fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
	}, log)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	svc := services.New(conn, log)
	auth.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		_, err := svc.Members.EnsureUser(ctx, uid)
		return err == nil
	})
	t.Cleanup(func() { auth.SetUserVerifier(nil) })

	srv := httptest.NewServer(withLogging(log, NewApp(svc, testAuth)))
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

// do sends body as JSON on behalf of uid (0 sends no token).
func (c *client) do(uid uint, method, path string, body any) (int, apiResult) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	if uid != 0 {
		tok, _, err := auth.GenerateToken(testAuth.Secret, testAuth.Issuer, uid, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var out apiResult
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (c *client) value(res apiResult, dst any) {
	c.t.Helper()
	require.NoError(c.t, json.Unmarshal(res.Value, dst))
}

func TestAPIRequiresToken(t *testing.T) {
	c := newTestServer(t)
	status, _ := c.do(0, http.MethodGet, "/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.do(0, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPISharedProjectFlow(t *testing.T) {
	c := newTestServer(t)
	const owner, editor, viewer, outsider = 1, 2, 3, 4

	status, res := c.do(owner, http.MethodPost, "/api/projects", map[string]string{"name": "Trip"})
	require.Equal(t, http.StatusCreated, status)
	var project struct {
		ID uint `json:"id"`
	}
	c.value(res, &project)
	base := fmt.Sprintf("/api/projects/%d", project.ID)

	for uid, role := range map[uint]string{editor: "editor", viewer: "viewer"} {
		status, res = c.do(owner, http.MethodPost, base+"/invitations", map[string]any{"role": role})
		require.Equal(t, http.StatusCreated, status)
		var inv struct {
			Arg string `json:"arg"`
		}
		c.value(res, &inv)
		status, _ = c.do(uid, http.MethodPost, "/api/invitations/"+inv.Arg+"/redeem", nil)
		require.Equal(t, http.StatusOK, status)
	}

	status, res = c.do(owner, http.MethodPost, "/api/categories", map[string]any{"name": "Groceries", "project_id": project.ID})
	require.Equal(t, http.StatusCreated, status)
	var saved struct {
		Category struct {
			ID uint `json:"id"`
		} `json:"category"`
	}
	c.value(res, &saved)
	expense := map[string]any{"amount": "12.50", "category_id": saved.Category.ID, "project_id": project.ID}

	status, _ = c.do(editor, http.MethodPost, "/api/expenses", expense)
	assert.Equal(t, http.StatusCreated, status)

	status, res = c.do(viewer, http.MethodPost, "/api/expenses", expense)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "permission_denied", res.Kind)

	status, res = c.do(editor, http.MethodPost, "/api/expenses", map[string]any{"amount": "0", "category_id": saved.Category.ID, "project_id": project.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "must_be_positive", res.Fields["amount"])

	status, res = c.do(viewer, http.MethodGet, fmt.Sprintf("/api/stats/month?project=%d", project.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var month struct {
		Total string `json:"total"`
		Count int    `json:"count"`
	}
	c.value(res, &month)
	assert.Equal(t, "12.5", month.Total)
	assert.Equal(t, 1, month.Count)

	status, _ = c.do(outsider, http.MethodGet, fmt.Sprintf("/api/stats/month?project=%d", project.ID), nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = c.do(outsider, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, res = c.do(viewer, http.MethodGet, base+"/members", nil)
	require.Equal(t, http.StatusOK, status)
	var members []struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	c.value(res, &members)
	require.Len(t, members, 3)
	assert.Equal(t, "owner", members[0].Role)

	status, _ = c.do(owner, http.MethodPost, base+"/leave", nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = c.do(owner, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.do(editor, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIBadInput(t *testing.T) {
	c := newTestServer(t)
	status, res := c.do(1, http.MethodGet, "/api/stats/month?project=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_id", res.Fields["project"])

	status, _ = c.do(1, http.MethodGet, "/api/stats/month?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(1, http.MethodPost, "/api/invitations/deadbeef/redeem", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
