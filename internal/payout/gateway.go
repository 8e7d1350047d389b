package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxErrorBody = 4 << 10

// Gateway is the HTTP client for the payout signer service.
type Gateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewGateway(baseURL, token string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var (
	_ Client   = (*Gateway)(nil)
	_ Lookuper = (*Gateway)(nil)
)

type payoutBody struct {
	Reference uuid.UUID `json:"reference"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Amount    string    `json:"amount"`
}

func (g *Gateway) Mint(ctx context.Context, req Request) (string, error) {
	return g.submit(ctx, "/v1/mint", req)
}

func (g *Gateway) Transfer(ctx context.Context, req Request) (string, error) {
	return g.submit(ctx, "/v1/transfer", req)
}

func (g *Gateway) submit(ctx context.Context, path string, req Request) (string, error) {
	body, err := json.Marshal(payoutBody{
		Reference: req.Reference,
		Chain:     string(req.Chain),
		Address:   req.Address,
		Amount:    req.Amount.String(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal payout request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.Reference.String())

	var receipt Receipt
	if err := g.do(httpReq, &receipt); err != nil {
		return "", err
	}
	if receipt.Status == StatusFailed {
		return "", fmt.Errorf("payout rejected: %s", receipt.Error)
	}
	if receipt.TxRef == "" {
		return "", fmt.Errorf("payout gateway returned no tx reference")
	}
	return receipt.TxRef, nil
}

// Lookup reports what the gateway knows about reference.
func (g *Gateway) Lookup(ctx context.Context, reference uuid.UUID) (*Receipt, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/payouts/"+reference.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	var receipt Receipt
	if err := g.do(httpReq, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (g *Gateway) do(req *http.Request, out any) error {
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payout gateway %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet {
		return ErrUnknownReference
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("payout gateway %s returned %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payout gateway response: %w", err)
	}
	return nil
}
