package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/misbot/backend/internal/apperr"
)

const timeLayout = time.RFC3339

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, invalidInput("%s must be a non-negative integer", key)
	}
	return n, nil
}

func invalidInput(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidInput, format, args...)
}

// storeErr classifies raw repository errors.
func storeErr(err error, op string) error {
	return apperr.Store(err, op)
}

func trim(s string) string { return strings.TrimSpace(s) }
