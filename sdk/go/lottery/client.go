// Package lottery is a typed Go client for the lotteryd HTTP API.
package lottery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"
)

// DefaultHTTPTimeout is generous because ticket purchases wait for the
// transaction to be mined before the server answers.
const DefaultHTTPTimeout = 2 * time.Minute

// View states reported by the server.
const (
	StateWalletUnavailable = "wallet_unavailable"
	StateDisconnected      = "disconnected"
	StateConnecting        = "connecting"
	StateWrongNetwork      = "wrong_network"
	StateConnectedLoading  = "connected_loading"
	StateConnected         = "connected"
)

// Client wraps the HTTP interactions with the lotteryd REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// View mirrors the server's view model.
type View struct {
	State           string        `json:"state"`
	Account         string        `json:"account,omitempty"`
	ChainID         string        `json:"chain_id,omitempty"`
	RequiredChainID string        `json:"required_chain_id"`
	NetworkName     string        `json:"network_name"`
	Error           string        `json:"error,omitempty"`
	Lottery         *LotteryView  `json:"lottery,omitempty"`
	Ticket          *TicketView   `json:"ticket,omitempty"`
	Rewards         *RewardsView  `json:"rewards,omitempty"`
	Notification    *Notification `json:"notification,omitempty"`
}

// LotteryView is the lottery status block.
type LotteryView struct {
	Loading        bool   `json:"loading"`
	Error          string `json:"error,omitempty"`
	Available      bool   `json:"available"`
	IsOpen         bool   `json:"is_open"`
	EntryFee       string `json:"entry_fee,omitempty"`
	WinningNumbers []int  `json:"winning_numbers,omitempty"`
}

// TicketView is the ticket form; nil slots are empty.
type TicketView struct {
	Open       bool    `json:"open"`
	Numbers    [7]*int `json:"numbers"`
	CanSubmit  bool    `json:"can_submit"`
	Submitting bool    `json:"submitting"`
}

// RewardsView is the rewards panel.
type RewardsView struct {
	Account    string `json:"account"`
	PendingWei string `json:"pending_wei"`
	Pending    string `json:"pending"`
	CanClaim   bool   `json:"can_claim"`
	Claiming   bool   `json:"claiming"`
	Message    string `json:"message,omitempty"`
}

// Notification is the single visible notification.
type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// TxRecord is one mined ticket purchase or claim.
type TxRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Account     string `json:"account"`
	TxHash      string `json:"tx_hash"`
	Numbers     []int  `json:"numbers,omitempty"`
	ValueWei    string `json:"value_wei"`
	BlockNumber uint64 `json:"block_number"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

// APIError represents server side validation or chain errors.
// Recoverable errors can be cleared by the user retrying the action.
type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
	Recoverable bool   `json:"recoverable"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("lottery api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("lottery api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the lotteryd API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken sets the bearer token sent with state-changing requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// View fetches the current view.
func (c *Client) View(ctx context.Context) (View, error) {
	var view View
	err := c.do(ctx, http.MethodGet, "/api/v1/view", nil, &view)
	return view, err
}

// Connect asks the server's wallet for authorization.
func (c *Client) Connect(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodPost, "/api/v1/session/connect", nil)
}

// Disconnect clears the server's session.
func (c *Client) Disconnect(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodPost, "/api/v1/session/disconnect", nil)
}

// SwitchNetwork asks the wallet to switch to the lottery's chain.
func (c *Client) SwitchNetwork(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodPost, "/api/v1/session/switch-network", nil)
}

// SetNumber updates ticket slot position (1..7). The boolean reports whether
// the server accepted the input.
func (c *Client) SetNumber(ctx context.Context, position int, value string) (bool, View, error) {
	var out struct {
		Accepted bool `json:"accepted"`
		View     View `json:"view"`
	}
	endpoint := "/api/v1/ticket/numbers/" + strconv.Itoa(position)
	if err := c.do(ctx, http.MethodPut, endpoint, map[string]string{"value": value}, &out); err != nil {
		return false, View{}, err
	}
	return out.Accepted, out.View, nil
}

// BuyTicket submits the current draft and waits for the transaction.
func (c *Client) BuyTicket(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodPost, "/api/v1/ticket", nil)
}

// ClaimRewards claims the pending rewards.
func (c *Client) ClaimRewards(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodPost, "/api/v1/rewards/claim", nil)
}

// CloseNotification dismisses the visible notification.
func (c *Client) CloseNotification(ctx context.Context) (View, error) {
	return c.action(ctx, http.MethodDelete, "/api/v1/notification", nil)
}

// History lists recent transactions, optionally filtered by account.
func (c *Client) History(ctx context.Context, account string, limit int) ([]TxRecord, error) {
	query := url.Values{}
	if account != "" {
		query.Set("account", account)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "/api/v1/history"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	var records []TxRecord
	err := c.do(ctx, http.MethodGet, endpoint, nil, &records)
	return records, err
}

func (c *Client) action(ctx context.Context, method, endpoint string, payload any) (View, error) {
	var view View
	err := c.do(ctx, method, endpoint, payload, &view)
	return view, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	rel, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	rel.Path = path.Join(c.baseURL.Path, rel.Path)
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" && method != http.MethodGet {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
