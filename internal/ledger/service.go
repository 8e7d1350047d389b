// Package ledger owns the authoritative point balance and energy budget of
// every account. All mutations are single guarded UPDATEs in the store.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/models"
	"github.com/misbot/backend/internal/repository"
)

// MaxDisplayNameLen is counted in characters after trimming.
const MaxDisplayNameLen = 255

// Store is the subset of the account repository the ledger needs.
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	InsertIfAbsent(ctx context.Context, a *models.Account) error
	ApplyTapDelta(ctx context.Context, id int64, count int, at time.Time) (*models.Account, error)
	DebitPoints(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) (*models.Account, error)
}

type Service interface {
	GetOrCreate(ctx context.Context, id int64, displayName string) (*models.Account, error)
	Get(ctx context.Context, id int64) (*models.Account, error)
	ApplyTapDelta(ctx context.Context, id int64, count int) (*models.Account, error)
	DebitPoints(ctx context.Context, id int64, amount int64) (*models.Account, error)
	// DebitPointsTx runs inside the caller's transaction.
	DebitPointsTx(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, id int64, name string) (*models.Account, error)
}

type service struct {
	store     Store
	energyMax int
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, energyMax int, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, energyMax: energyMax, logger: logger, now: time.Now}
}

var _ Service = (*service)(nil)

// GetOrCreate returns the account, inserting it with zero points and full
// energy on first contact. Concurrent first contacts resolve to one row.
func (s *service) GetOrCreate(ctx context.Context, id int64, displayName string) (*models.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Store(err, "get account")
	}
	err = s.store.InsertIfAbsent(ctx, &models.Account{
		ID:          id,
		DisplayName: truncateName(strings.TrimSpace(displayName)),
		Energy:      s.energyMax,
	})
	if err != nil {
		return nil, apperr.Store(err, "create account")
	}
	acc, err = s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "get account")
	}
	s.logger.Info("account created", "account_id", id)
	return acc, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Account, error) {
	acc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "get account")
	}
	return acc, nil
}

func (s *service) ApplyTapDelta(ctx context.Context, id int64, count int) (*models.Account, error) {
	if count <= 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "tap count must be positive")
	}
	acc, err := s.store.ApplyTapDelta(ctx, id, count, s.now().UTC())
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return nil, apperr.Store(err, "apply tap delta")
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, apperr.New(apperr.CodeInsufficientEnergy,
		"insufficient energy: have %d, need %d", cur.Energy, count)
}

func (s *service) DebitPoints(ctx context.Context, id int64, amount int64) (*models.Account, error) {
	return s.DebitPointsTx(ctx, nil, id, amount)
}

func (s *service) DebitPointsTx(ctx context.Context, tx pgx.Tx, id int64, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, apperr.New(apperr.CodeInvalidAmount, "debit amount must be positive")
	}
	acc, err := s.store.DebitPoints(ctx, tx, id, amount)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return nil, apperr.Store(err, "debit points")
	}
	// Read outside tx: only used for the message.
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, apperr.New(apperr.CodeInsufficientBalance,
		"insufficient points: have %d, need %d", cur.Points, amount)
}

func (s *service) UpdateDisplayName(ctx context.Context, id int64, name string) (*models.Account, error) {
	name, err := NormalizeDisplayName(name)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.UpdateDisplayName(ctx, id, name)
	if err != nil {
		return nil, s.mapErr(err, "update display name")
	}
	return acc, nil
}

// NormalizeDisplayName trims name and checks it is 1-255 characters long.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxDisplayNameLen {
		return "", apperr.New(apperr.CodeInvalidInput,
			"display name must be between 1 and %d characters", MaxDisplayNameLen)
	}
	return name, nil
}

func truncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxDisplayNameLen {
		return name
	}
	return string([]rune(name)[:MaxDisplayNameLen])
}

func (s *service) mapErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.CodeNotFound, "account not found")
	}
	return apperr.Store(err, op)
}
