package auth

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:ABC-test-token"

func signedInitData(t *testing.T, authDate time.Time, user string) string {
	t.Helper()
	v := url.Values{}
	v.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	v.Set("user", user)
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	v.Set("hash", SignInitData(v, testBotToken))
	return v.Encode()
}

func TestVerifyInitData_Valid(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	data := signedInitData(t, now.Add(-time.Minute), `{"id":42,"first_name":"Ada","last_name":"L","username":"ada"}`)

	u, err := VerifyInitData(data, testBotToken, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "ada", u.DisplayName())
}

func TestVerifyInitData_Rejects(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	good := signedInitData(t, now, `{"id":42,"first_name":"Ada"}`)

	tampered, _ := url.ParseQuery(good)
	tampered.Set("user", `{"id":1,"first_name":"Mallory"}`)

	noHash, _ := url.ParseQuery(good)
	noHash.Del("hash")

	cases := []struct {
		name  string
		data  string
		token string
		age   time.Duration
		now   time.Time
		want  error
	}{
		{"tampered field", tampered.Encode(), testBotToken, 0, now, ErrSignatureMismatch},
		{"wrong bot token", good, "999:other", 0, now, ErrSignatureMismatch},
		{"missing hash", noHash.Encode(), testBotToken, 0, now, ErrMissingHash},
		{"expired", good, testBotToken, time.Hour, now.Add(2 * time.Hour), ErrInitDataExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyInitData(tc.data, tc.token, tc.age, tc.now)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyInitData_AgeCheckDisabled(t *testing.T) {
	old := time.Unix(1_600_000_000, 0)
	data := signedInitData(t, old, `{"id":7,"first_name":"Old","last_name":"Timer"}`)

	u, err := VerifyInitData(data, testBotToken, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Old Timer", u.DisplayName())
}

func TestDataCheckStringSortsAndSkipsHash(t *testing.T) {
	v := url.Values{"b": {"2"}, "a": {"1"}, "hash": {"x"}}
	assert.Equal(t, "a=1\nb=2", DataCheckString(v))
}
