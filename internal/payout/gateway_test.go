package payout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misbot/backend/internal/models"
)

func TestGateway_MintSendsIdempotencyKey(t *testing.T) {
	ref := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mint", r.URL.Path)
		assert.Equal(t, ref.String(), r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		var body payoutBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0.02", body.Amount)
		assert.Equal(t, "EQaddr", body.Address)

		_ = json.NewEncoder(w).Encode(Receipt{Reference: ref, Status: StatusConfirmed, TxRef: "tx-1"})
	}))
	defer srv.Close()

	gw := NewGateway(srv.URL+"/", "s3cret", time.Second)
	txRef, err := gw.Mint(context.Background(), Request{
		Reference: ref,
		Chain:     models.ChainTON,
		Address:   "EQaddr",
		Amount:    decimal.RequireFromString("0.02"),
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", txRef)
}

func TestGateway_TransferErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "wallet empty", http.StatusInternalServerError)
		}},
		{"rejected", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(Receipt{Status: StatusFailed, Error: "bad address"})
		}},
		{"no tx ref", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(Receipt{Status: StatusConfirmed})
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := NewGateway(srv.URL, "", time.Second).Transfer(context.Background(), Request{Reference: uuid.New()})
			assert.Error(t, err)
		})
	}
}

func TestGateway_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewGateway(srv.URL, "", time.Minute).Transfer(ctx, Request{Reference: uuid.New()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGateway_Lookup(t *testing.T) {
	known := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payouts/"+known.String() {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(Receipt{Reference: known, Status: StatusConfirmed, TxRef: "tx-9"})
	}))
	defer srv.Close()
	gw := NewGateway(srv.URL, "", time.Second)

	rec, err := gw.Lookup(context.Background(), known)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, rec.Status)
	assert.Equal(t, "tx-9", rec.TxRef)

	_, err = gw.Lookup(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Mint(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = Disabled{}.Transfer(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
