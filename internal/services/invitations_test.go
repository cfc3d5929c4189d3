package services_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvitation(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)

	inv, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "viewer", time.Hour)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), inv.Token)
	assert.True(t, e.clock.Now().Add(time.Hour).Equal(inv.ExpiresAt))
	assert.Equal(t, models.RoleViewer, inv.Role)

	def, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "editor", 0)
	require.NoError(t, err)
	assert.True(t, e.clock.Now().Add(24*time.Hour).Equal(def.ExpiresAt))
	assert.NotEqual(t, inv.Token, def.Token)

	_, err = e.svc.Invitations.CreateInvitation(e.ctx, editor, pid, "viewer", 0)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = e.svc.Invitations.CreateInvitation(e.ctx, outsider, pid, "viewer", 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "owner", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "Editor", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRedeemInvitationIsSingleUse(t *testing.T) {
	e := newEnv(t)
	p, err := e.svc.Projects.CreateProject(e.ctx, owner, "Flat")
	require.NoError(t, err)
	inv, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, p.ID, "viewer", 0)
	require.NoError(t, err)

	red, err := e.svc.Invitations.RedeemInvitation(e.ctx, viewer, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, red.Role)

	_, err = e.svc.Invitations.RedeemInvitation(e.ctx, outsider, inv.Token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	role, err := e.svc.Members.ResolveRole(e.ctx, outsider, p.ID)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestRedeemInvitationExpired(t *testing.T) {
	e := newEnv(t)
	p, err := e.svc.Projects.CreateProject(e.ctx, owner, "Flat")
	require.NoError(t, err)
	inv, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, p.ID, "editor", time.Hour)
	require.NoError(t, err)

	e.clock.Set(inv.ExpiresAt)
	_, err = e.svc.Invitations.RedeemInvitation(e.ctx, editor, inv.Token)
	assert.ErrorIs(t, err, apperr.ErrExpired)
	assert.Zero(t, count(t, e.db, &models.Invitation{}, "token = ?", inv.Token), "expired tokens are deleted")
	assert.Zero(t, count(t, e.db, &models.ProjectMember{}, "project_id = ? AND user_id = ?", p.ID, editor))

	_, err = e.svc.Invitations.RedeemInvitation(e.ctx, editor, inv.Token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRedeemInvitationAlreadyMember(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	inv, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "viewer", 0)
	require.NoError(t, err)

	for _, user := range []uint{owner, editor} {
		_, err = e.svc.Invitations.RedeemInvitation(e.ctx, user, inv.Token)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	role, err := e.svc.Members.ResolveRole(e.ctx, editor, pid)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, role, "a conflicting redemption must not downgrade")

	// the token survives and still works for someone new
	_, err = e.svc.Invitations.RedeemInvitation(e.ctx, outsider, inv.Token)
	require.NoError(t, err)
}

func TestSweepExpired(t *testing.T) {
	e := newEnv(t)
	pid := e.trip(t)
	for _, ttl := range []time.Duration{time.Minute, time.Hour, 48 * time.Hour} {
		_, err := e.svc.Invitations.CreateInvitation(e.ctx, owner, pid, "viewer", ttl)
		require.NoError(t, err)
	}

	n, err := e.svc.Invitations.SweepExpired(e.ctx, e.clock.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = e.svc.Invitations.SweepExpired(e.ctx, e.clock.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), count(t, e.db, &models.Invitation{}, "project_id = ?", pid))
}

func TestParseInviteArg(t *testing.T) {
	tests := []struct {
		arg    string
		want   string
		wantOK bool
	}{
		{"inv_abc123", "abc123", true},
		{" inv_abc123 ", "abc123", true},
		{services.InviteArg("ff00"), "ff00", true},
		{"inv_", "", false},
		{"abc123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := services.ParseInviteArg(tt.arg)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseInviteArg(%q) = %q, %v; want %q, %v", tt.arg, got, ok, tt.want, tt.wantOK)
		}
	}
}
