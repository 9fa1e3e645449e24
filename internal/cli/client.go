package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"racket/internal/auth"
	"racket/internal/game"
)

// APIError is a non-2xx response from the racket API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	}, &out, "")
	return out, err
}

func (c *Client) Catalog(ctx context.Context) (game.CatalogView, error) {
	var out game.CatalogView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog", "", nil, &out, "")
	return out, err
}

func (c *Client) Join(ctx context.Context, accessToken, idem string) (game.CreatePlayerResult, error) {
	var out game.CreatePlayerResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) Player(ctx context.Context, accessToken string) (game.PlayerView, error) {
	var out game.PlayerView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/player", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Audit(ctx context.Context, accessToken string) (game.AuditReport, error) {
	var out game.AuditReport
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/player/audit", accessToken, nil, &out, "")
	return out, err
}

// BuyBody is the request body for a purchase. A negative slot lets the server pick.
func BuyBody(kind string, slot int, level uint8) map[string]any {
	body := map[string]any{"kind": kind, "level": level}
	if slot >= 0 {
		body["slot_index"] = slot
	}
	return body
}

func (c *Client) Buy(ctx context.Context, accessToken string, body map[string]any, idem string) (game.BuyBusinessResult, error) {
	var out game.BuyBusinessResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/businesses", accessToken, body, &out, idem)
	return out, err
}

func UpgradePath(slot int) string {
	return fmt.Sprintf("/v1/slots/%d/upgrade", slot)
}

func SellPath(slot int) string {
	return fmt.Sprintf("/v1/slots/%d/sell", slot)
}

func (c *Client) Upgrade(ctx context.Context, accessToken string, slot int, idem string) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, UpgradePath(slot), accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) Sell(ctx context.Context, accessToken string, slot int, idem string) (game.SaleResult, error) {
	var out game.SaleResult
	err := c.jsonRequest(ctx, http.MethodPost, SellPath(slot), accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) Claim(ctx context.Context, accessToken, idem string) (game.ClaimResult, error) {
	var out game.ClaimResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/claims", accessToken, nil, &out, idem)
	return out, err
}

func (c *Client) Entitle(ctx context.Context, accessToken, idem string) (game.EntitlementResult, error) {
	var out game.EntitlementResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/entitlement", accessToken, nil, &out, idem)
	return out, err
}

type StatsResponse struct {
	Stats           game.GlobalStats `json:"stats"`
	TreasuryBalance uint64           `json:"treasury_balance_units"`
}

func (c *Client) Stats(ctx context.Context, accessToken string) (StatsResponse, error) {
	var out StatsResponse
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/stats", accessToken, nil, &out, "")
	return out, err
}

func (c *Client) Do(ctx context.Context, method, path, accessToken string, body map[string]any, idem string) (map[string]any, error) {
	var out map[string]any
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, method, path, accessToken, in, &out, idem)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
