package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"github.com/diewo77/go-expenses/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InviteArgPrefix marks an invitation token in a chat deep link.
const InviteArgPrefix = "inv_"

// InvitationService issues and redeems single-use project invitations.
type InvitationService struct {
	*base
}

func NewInvitationService(db *gorm.DB, log *slog.Logger, opts ...Option) *InvitationService {
	return &InvitationService{base: newBase(db, log, opts...)}
}

// Redemption describes the membership an invitation produced.
type Redemption struct {
	ProjectID   uint        `json:"project_id"`
	ProjectName string      `json:"project_name"`
	Role        models.Role `json:"role"`
}

// ParseInviteArg extracts the token from a deep link argument like
// "inv_<token>".
func ParseInviteArg(arg string) (string, bool) {
	token, ok := strings.CutPrefix(strings.TrimSpace(arg), InviteArgPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// InviteArg is the deep link argument for token.
func InviteArg(token string) string {
	return InviteArgPrefix + token
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateInvitation mints a token granting role in the project. Only the
// project's owner may invite. A non-positive ttl uses the configured default.
func (s *InvitationService) CreateInvitation(ctx context.Context, owner, projectID uint, role string, ttl time.Duration) (*models.Invitation, error) {
	const op = "invite_members"
	v := validation.Violations{}
	validation.OneOf("role", role, models.InvitableRoles, v)
	if !v.Empty() {
		return nil, apperr.InvalidFields(op, v)
	}
	r := models.Role(role)
	if ttl <= 0 {
		ttl = s.inviteTTL
	}
	var inv *models.Invitation
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var p models.Project
		if err := visibleProject(ctx, tx, auth, op, owner, projectID, &p); err != nil {
			return err
		}
		if err := auth.AuthorizeResource(ctx, owner, &projectID, policy.PermInviteMembers, &p); err != nil {
			return err
		}
		now := s.now()
		inv = &models.Invitation{
			Token:     newToken(),
			ProjectID: p.ID,
			InviterID: owner,
			Role:      r,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		return tx.Create(inv).Error
	})
	if err != nil {
		return nil, s.fail(op, err, "user", owner, "project", projectID)
	}
	s.log.Info("invitation_created", "user", owner, "project", projectID, "role", r, "expires_at", inv.ExpiresAt)
	return inv, nil
}

// RedeemInvitation joins userID to the invitation's project. The membership
// insert, the active project switch and the token deletion commit together.
// An expired token is deleted and reported as Expired; a caller who already
// has a role gets a Conflict and the token stays usable.
func (s *InvitationService) RedeemInvitation(ctx context.Context, userID uint, token string) (*Redemption, error) {
	const op = "redeem_invitation"
	if token == "" {
		return nil, apperr.NotFound(op, "invitation")
	}
	var (
		out     *Redemption
		expired bool
	)
	err := s.tx(ctx, func(tx *gorm.DB, auth *policy.Authorizer) error {
		var inv models.Invitation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("token = ?", token).Take(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(op, "invitation")
		}
		if err != nil {
			return err
		}
		var p models.Project
		err = loadProject(tx, op, inv.ProjectID, &p)
		if inv.Expired(s.now()) || errors.Is(err, apperr.ErrNotFound) {
			// commit the deletion; the outcome is reported after
			expired = err == nil
			return tx.Delete(&inv).Error
		}
		if err != nil {
			return err
		}
		role, err := auth.ResolveRole(ctx, userID, p.ID)
		if err != nil {
			return err
		}
		if role != "" {
			return apperr.Conflict(op, "already a member")
		}
		if _, err := ensureUser(tx, userID); err != nil {
			return err
		}
		if _, err := addMember(tx, p.ID, userID, inv.Role, s.now()); err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("active_project_id", p.ID).Error; err != nil {
			return err
		}
		res := tx.Where("token = ?", inv.Token).Delete(&models.Invitation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return apperr.Conflict(op, "invitation already redeemed")
		}
		out = &Redemption{ProjectID: p.ID, ProjectName: p.Name, Role: inv.Role}
		return nil
	})
	if err != nil {
		return nil, s.fail(op, err, "user", userID)
	}
	if out == nil {
		if expired {
			return nil, apperr.Expired(op, "invitation")
		}
		return nil, apperr.NotFound(op, "invitation")
	}
	s.log.Info("invitation_redeemed", "user", userID, "project", out.ProjectID, "role", out.Role)
	return out, nil
}

// SweepExpired deletes every invitation expired at now and returns how many
// went. It only deletes by predicate, so concurrent runs are harmless.
func (s *InvitationService) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.Invitation{})
	if res.Error != nil {
		return 0, s.fail("sweep_invitations", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("invitations_swept", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
