// Package auth verifies Telegram Mini App identities and issues the JWT
// sessions the rest of the API accepts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/misbot/backend/internal/apperr"
	"github.com/misbot/backend/internal/models"
)

// DevInitData authenticates as models.DevAccountID when dev bypass is on.
const DevInitData = "dev_data"

const issuer = "misbot"

// Identity is the trusted caller produced by this package.
type Identity struct {
	AccountID   int64
	DisplayName string
}

type Service interface {
	AuthenticateInitData(ctx context.Context, initData string) (Identity, error)
	IssueToken(id Identity) (token string, expiresAt time.Time, err error)
	ValidateToken(ctx context.Context, token string) (Identity, error)
}

type Options struct {
	JWTSecret      string
	SessionTTL     time.Duration
	BotToken       string
	InitDataMaxAge time.Duration
	// AllowDevBypass accepts DevInitData. Never set in production.
	AllowDevBypass bool
}

type service struct {
	opts   Options
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

func NewService(opts Options, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &service{opts: opts, secret: []byte(opts.JWTSecret), logger: logger, now: time.Now}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

func (s *service) AuthenticateInitData(_ context.Context, initData string) (Identity, error) {
	if initData == "" {
		return Identity{}, apperr.New(apperr.CodeUnauthorized, "missing init data")
	}
	if s.opts.AllowDevBypass && initData == DevInitData {
		return Identity{AccountID: models.DevAccountID, DisplayName: "test_user"}, nil
	}
	if s.opts.BotToken == "" {
		s.logger.Error("init data received but BOT_TOKEN is not set")
		return Identity{}, apperr.New(apperr.CodeInvalidSignature, "invalid init data signature")
	}
	u, err := VerifyInitData(initData, s.opts.BotToken, s.opts.InitDataMaxAge, s.now())
	if err != nil {
		s.logger.Warn("init data rejected", "error", err, "length", len(initData))
		if errors.Is(err, ErrInitDataExpired) {
			return Identity{}, apperr.Wrap(apperr.CodeInvalidSignature, err, "init data expired")
		}
		return Identity{}, apperr.Wrap(apperr.CodeInvalidSignature, err, "invalid init data signature")
	}
	return Identity{AccountID: u.ID, DisplayName: u.DisplayName()}, nil
}

func (s *service) IssueToken(id Identity) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.opts.SessionTTL)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.AccountID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name: id.DisplayName,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

func (s *service) ValidateToken(_ context.Context, token string) (Identity, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid or expired session")
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return Identity{}, apperr.New(apperr.CodeUnauthorized, "invalid session")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid session subject")
	}
	return Identity{AccountID: id, DisplayName: c.Name}, nil
}
