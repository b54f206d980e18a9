// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package client talks to a samizdatd API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luxfi/samizdat/pkg/accounts"
	"github.com/luxfi/samizdat/pkg/analytics"
	"github.com/luxfi/samizdat/pkg/api"
	"github.com/luxfi/samizdat/pkg/ids"
	"github.com/luxfi/samizdat/pkg/settlement"
	"github.com/luxfi/samizdat/pkg/tags"
)

var errNoCaller = errors.New("client: caller not set")

// Error is a non-2xx reply. It unwraps to the matching settlement error
// so callers can use errors.Is across the wire.
type Error struct {
	Status  int
	Kind    string
	Stage   string
	Message string
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("samizdat: %d %s after %s: %s", e.Status, e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("samizdat: %d %s: %s", e.Status, e.Kind, e.Message)
}

var kinds = map[string]error{
	"domain_mismatch":     settlement.ErrDomainMismatch,
	"invalid_signature":   settlement.ErrInvalidSignature,
	"replayed_nonce":      settlement.ErrReplayedNonce,
	"ad_inactive":         settlement.ErrAdInactive,
	"screen_inactive":     settlement.ErrScreenInactive,
	"screen_mismatch":     settlement.ErrScreenMismatch,
	"budget_exhausted":    settlement.ErrBudgetExhausted,
	"insufficient_escrow": settlement.ErrInsufficientEscrow,
	"arithmetic_overflow": settlement.ErrArithmeticOverflow,
	"unauthorized":        settlement.ErrUnauthorized,
	"ad_not_found":        settlement.ErrAdNotFound,
	"screen_not_found":    settlement.ErrScreenNotFound,
	"ad_exists":           settlement.ErrAdExists,
	"screen_exists":       settlement.ErrScreenExists,
	"ad_closed":           settlement.ErrAdClosed,
	"invalid_amount":      settlement.ErrInvalidAmount,
	"invalid_record":      settlement.ErrInvalidRecord,
}

func (e *Error) Unwrap() error { return kinds[e.Kind] }

// Client is the samizdat API client.
type Client struct {
	baseURL    string
	caller     ids.ID
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		dialer: websocket.DefaultDialer,
	}
}

// WithCaller returns a copy of c that acts as wallet.
func (c *Client) WithCaller(wallet ids.ID) *Client {
	cp := *c
	cp.caller = wallet
	return &cp
}

// SubmitProof sends a signed display claim.
func (c *Client) SubmitProof(ctx context.Context, req *settlement.SubmitProofRequest) (*settlement.Receipt, error) {
	var receipt settlement.Receipt
	if err := c.do(ctx, http.MethodPost, "/proofs", false, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// CreateAd opens a campaign owned by the caller.
func (c *Client) CreateAd(ctx context.Context, req *settlement.CreateAdRequest) (*settlement.AdEntry, error) {
	var entry settlement.AdEntry
	if err := c.do(ctx, http.MethodPost, "/ads", true, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) FundAd(ctx context.Context, ad ids.ID, amount uint64) (*accounts.AdAccount, error) {
	return c.adCall(ctx, http.MethodPost, "/ads/"+ad.String()+"/fund", api.FundRequest{Amount: amount})
}

func (c *Client) SetAdActive(ctx context.Context, ad ids.ID, active bool) (*accounts.AdAccount, error) {
	return c.adCall(ctx, http.MethodPut, "/ads/"+ad.String()+"/active", api.ActiveRequest{Active: active})
}

func (c *Client) UpdateAd(ctx context.Context, req *settlement.UpdateAdRequest) (*accounts.AdAccount, error) {
	return c.adCall(ctx, http.MethodPatch, "/ads/"+req.Ad.String(), req)
}

// CloseAd retires a campaign and returns the refunded escrow.
func (c *Client) CloseAd(ctx context.Context, ad ids.ID) (*settlement.CloseAdResponse, error) {
	var resp settlement.CloseAdResponse
	if err := c.do(ctx, http.MethodPost, "/ads/"+ad.String()+"/close", true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAd(ctx context.Context, ad ids.ID) (*accounts.AdAccount, error) {
	var entry settlement.AdEntry
	if err := c.do(ctx, http.MethodGet, "/ads/"+ad.String(), false, nil, &entry); err != nil {
		return nil, err
	}
	return entry.Ad, nil
}

// ListAds lists campaigns; activeOnly leaves out ones that cannot pay.
func (c *Client) ListAds(ctx context.Context, activeOnly bool) ([]settlement.AdEntry, error) {
	var out []settlement.AdEntry
	path := "/ads"
	if activeOnly {
		path += "?active=true"
	}
	if err := c.do(ctx, http.MethodGet, path, false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateScreen registers a screen owned by the caller.
func (c *Client) CreateScreen(ctx context.Context, req *settlement.CreateScreenRequest) (*settlement.ScreenEntry, error) {
	var entry settlement.ScreenEntry
	if err := c.do(ctx, http.MethodPost, "/screens", true, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) SetScreenActive(ctx context.Context, screen ids.ID, active bool) (*accounts.ScreenAccount, error) {
	return c.screenCall(ctx, http.MethodPut, "/screens/"+screen.String()+"/active", api.ActiveRequest{Active: active})
}

func (c *Client) UpdateScreen(ctx context.Context, req *settlement.UpdateScreenRequest) (*accounts.ScreenAccount, error) {
	return c.screenCall(ctx, http.MethodPatch, "/screens/"+req.Screen.String(), req)
}

func (c *Client) GetScreen(ctx context.Context, screen ids.ID) (*accounts.ScreenAccount, error) {
	var entry settlement.ScreenEntry
	if err := c.do(ctx, http.MethodGet, "/screens/"+screen.String(), false, nil, &entry); err != nil {
		return nil, err
	}
	return entry.Screen, nil
}

// Balance returns the credit accumulated by wallet.
func (c *Client) Balance(ctx context.Context, wallet ids.ID) (*api.BalanceResponse, error) {
	var resp api.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/wallets/"+wallet.String()+"/balance", false, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Publisher returns the campaign totals of authority.
func (c *Client) Publisher(ctx context.Context, authority ids.ID) (*accounts.PublisherAccount, error) {
	var pub accounts.PublisherAccount
	if err := c.do(ctx, http.MethodGet, "/publishers/"+authority.String(), false, nil, &pub); err != nil {
		return nil, err
	}
	return &pub, nil
}

// Tags returns the server's category table.
func (c *Client) Tags(ctx context.Context) ([]tags.Tag, error) {
	var out []tags.Tag
	if err := c.do(ctx, http.MethodGet, "/tags", false, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context) (*analytics.Summary, error) {
	var out analytics.Summary
	if err := c.do(ctx, http.MethodGet, "/stats", false, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subscribe streams engine events of the given types, or all events if
// none are given. The channel closes when ctx ends or the connection
// drops.
func (c *Client) Subscribe(ctx context.Context, events ...string) (<-chan settlement.Event, error) {
	wsURL, err := c.websocketURL()
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}
	if len(events) > 0 {
		if err := conn.WriteJSON(api.SubscribeMessage{Type: "subscribe", Events: events}); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	out := make(chan settlement.Event, 64)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			var evt settlement.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) adCall(ctx context.Context, method, path string, body any) (*accounts.AdAccount, error) {
	var entry settlement.AdEntry
	if err := c.do(ctx, method, path, true, body, &entry); err != nil {
		return nil, err
	}
	return entry.Ad, nil
}

func (c *Client) screenCall(ctx context.Context, method, path string, body any) (*accounts.ScreenAccount, error) {
	var entry settlement.ScreenEntry
	if err := c.do(ctx, method, path, true, body, &entry); err != nil {
		return nil, err
	}
	return entry.Screen, nil
}

func (c *Client) do(ctx context.Context, method, path string, authenticated bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		if c.caller.IsEmpty() {
			return errNoCaller
		}
		req.Header.Set(api.CallerHeader, c.caller.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &Error{Status: resp.StatusCode, Kind: "internal", Message: resp.Status}
		}
		return &Error{Status: resp.StatusCode, Kind: apiErr.Kind, Stage: apiErr.Stage, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
