package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingHash       = errors.New("init data has no hash")
	ErrSignatureMismatch = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
	ErrNoUser            = errors.New("init data has no user")
)

// TelegramUser is the "user" field of Mini App init data.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// DisplayName prefers the @username, then the full name.
func (u TelegramUser) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// VerifyInitData checks the Mini App init data signature against botToken
// and returns the embedded user. maxAge <= 0 skips the auth_date check.
//
// Key: HMAC-SHA256("WebAppData", botToken). Signed data: every field except
// hash as key=value, sorted, joined by newlines.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*TelegramUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}
	got, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrSignatureMismatch
	}
	if !hmac.Equal(got, sign(DataCheckString(values), botToken)) {
		return nil, ErrSignatureMismatch
	}

	if maxAge > 0 {
		ts, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil || now.Sub(time.Unix(ts, 0)) > maxAge {
			return nil, ErrInitDataExpired
		}
	}

	raw := values.Get("user")
	if raw == "" {
		return nil, ErrNoUser
	}
	var u TelegramUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, ErrNoUser
	}
	return &u, nil
}

// DataCheckString builds the string Telegram signs.
func DataCheckString(values url.Values) string {
	var lines []string
	for k, vs := range values {
		if k == "hash" {
			continue
		}
		for _, v := range vs {
			lines = append(lines, k+"="+v)
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// SignInitData returns the hex hash for values. Used by tests and local tooling.
func SignInitData(values url.Values, botToken string) string {
	return hex.EncodeToString(sign(DataCheckString(values), botToken))
}

func sign(data, botToken string) []byte {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
