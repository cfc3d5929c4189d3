// Package services holds the permission-scoped operations of the expense
// ledger. Every write runs in its own transaction and re-checks permission
// inside it; nothing is cached between calls.
package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/diewo77/go-expenses/internal/apperr"
	"github.com/diewo77/go-expenses/internal/db"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Option customizes the shared service base.
type Option func(*base)

// WithClock replaces the wall clock. Times are normalized to UTC seconds.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.clock = now }
}

// WithInviteTTL sets the default invitation lifetime.
func WithInviteTTL(ttl time.Duration) Option {
	return func(b *base) {
		if ttl > 0 {
			b.inviteTTL = ttl
		}
	}
}

type base struct {
	db        *gorm.DB
	log       *slog.Logger
	auth      *policy.Authorizer
	clock     func() time.Time
	inviteTTL time.Duration
}

func newBase(gdb *gorm.DB, log *slog.Logger, opts ...Option) *base {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &base{
		db:        gdb,
		log:       log,
		auth:      policy.NewAuthorizer(gdb),
		clock:     time.Now,
		inviteTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock().UTC().Truncate(time.Second)
}

// tx runs fn in a transaction with an authorizer bound to it.
func (b *base) tx(ctx context.Context, fn func(tx *gorm.DB, auth *policy.Authorizer) error) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, b.auth.With(tx))
	})
}

// fail maps err into the taxonomy. Typed errors pass through; anything else is
// a storage failure and gets logged with the ids involved.
func (b *base) fail(op string, err error, ids ...any) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	wrapped := apperr.Storage(op, err, ids...)
	b.log.Error("storage_error", append([]any{"op", op, "error", err}, ids...)...)
	return wrapped
}

// ensureUser creates the user row on first sight and seeds its system
// categories. It reports whether the row was created.
func ensureUser(tx *gorm.DB, userID uint) (bool, error) {
	if userID == 0 {
		return false, apperr.Invalid("ensure_user", "user id is required")
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{ID: userID})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if _, err := db.EnsureSystemCategories(tx, userID); err != nil {
		return true, err
	}
	return true, nil
}

// Services bundles every service over one database handle.
type Services struct {
	Members     *MembershipService
	Categories  *CategoryService
	Expenses    *ExpenseService
	Stats       *StatsService
	Invitations *InvitationService
	Projects    *ProjectService
	Budgets     *BudgetService
}

// New wires all services with shared options.
func New(gdb *gorm.DB, log *slog.Logger, opts ...Option) *Services {
	b := newBase(gdb, log, opts...)
	stats := &StatsService{base: b}
	return &Services{
		Members:     &MembershipService{base: b},
		Categories:  &CategoryService{base: b},
		Expenses:    &ExpenseService{base: b},
		Stats:       stats,
		Invitations: &InvitationService{base: b},
		Projects:    &ProjectService{base: b, stats: stats},
		Budgets:     &BudgetService{base: b},
	}
}
