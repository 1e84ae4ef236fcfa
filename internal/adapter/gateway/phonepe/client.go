// Package phonepe is a PhonePe Standard Checkout (v2) client implementing
// ports.PaymentGateway.
package phonepe

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
	"sync"
	"time"

	"merchant-wallet/config"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"
	"merchant-wallet/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	sandboxAuthURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	sandboxPGURL      = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	productionAuthURL = "https://api.phonepe.com/apis/identity-manager"
	productionPGURL   = "https://api.phonepe.com/apis/pg"

	tokenPath  = "/v1/oauth/token"
	payPath    = "/checkout/v2/pay"
	statusPath = "/checkout/v2/order/%s/status"

	// Refresh the access token this long before the gateway expires it.
	tokenRefreshSkew = time.Minute

	responseBodyLimit int64 = 1 << 20
)

var errCredentialsRequired = errors.New("phonepe client id and secret are required")

// APIError is a non-2xx answer from PhonePe.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("phonepe: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("phonepe: http %d: %s", e.StatusCode, e.Message)
}

// Is reports a 4xx answer as ports.ErrGatewayRejected. Timeouts and
// throttling stay retryable.
func (e *APIError) Is(target error) bool {
	if target != ports.ErrGatewayRejected {
		return false
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client talks to the PhonePe checkout and identity APIs.
type Client struct {
	httpClient    *http.Client
	authURL       string
	pgURL         string
	clientID      string
	clientSecret  string
	clientVersion string
	metrics       *metrics.WalletMetrics
	log           zerolog.Logger
	now           func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURLs points the client at different identity and checkout hosts.
func WithBaseURLs(authURL, pgURL string) Option {
	return func(c *Client) {
		if s := strings.TrimRight(strings.TrimSpace(authURL), "/"); s != "" {
			c.authURL = s
		}
		if s := strings.TrimRight(strings.TrimSpace(pgURL), "/"); s != "" {
			c.pgURL = s
		}
	}
}

// WithMetrics records gateway latency.
func WithMetrics(m *metrics.WalletMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds a PhonePe client for the configured environment.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "1"
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		authURL:       sandboxAuthURL,
		pgURL:         sandboxPGURL,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		clientVersion: version,
		log:           log.With().Str("component", "phonepe").Logger(),
		now:           time.Now,
	}
	if cfg.IsProduction() {
		c.authURL = productionAuthURL
		c.pgURL = productionPGURL
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type payRequest struct {
	MerchantOrderID string      `json:"merchantOrderId"`
	Amount          int64       `json:"amount"`
	PaymentFlow     paymentFlow `json:"paymentFlow"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	MerchantURLs merchantURLs `json:"merchantUrls"`
}

type merchantURLs struct {
	RedirectURL string `json:"redirectUrl"`
}

type payResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
}

type orderStatusResponse struct {
	OrderID        string          `json:"orderId"`
	State          string          `json:"state"`
	Amount         int64           `json:"amount"`
	ErrorCode      string          `json:"errorCode"`
	DetailedError  string          `json:"detailedErrorCode"`
	PaymentDetails []paymentDetail `json:"paymentDetails"`
}

type paymentDetail struct {
	TransactionID string `json:"transactionId"`
	PaymentMode   string `json:"paymentMode"`
	State         string `json:"state"`
	Amount        int64  `json:"amount"`
	ErrorCode     string `json:"errorCode"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InitiatePayment creates a checkout order and returns the payer redirect.
func (c *Client) InitiatePayment(ctx context.Context, session ports.PaymentSession) (*ports.PaymentRedirect, error) {
	if session.CorrelationID == "" {
		return nil, errors.New("phonepe: correlation id is required")
	}
	if session.AmountMinor <= 0 {
		return nil, fmt.Errorf("phonepe: amount must be positive, got %d", session.AmountMinor)
	}

	start := c.now()
	defer func() { c.metrics.ObserveGateway("pay", c.now().Sub(start)) }()

	body, err := json.Marshal(payRequest{
		MerchantOrderID: session.CorrelationID,
		Amount:          session.AmountMinor,
		PaymentFlow: paymentFlow{
			Type:         "PG_CHECKOUT",
			MerchantURLs: merchantURLs{RedirectURL: session.RedirectURL},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("phonepe: marshal pay request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.pgURL+payPath, body)
	if err != nil {
		return nil, err
	}

	var resp payResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("phonepe: decode pay response: %w", err)
	}
	if resp.RedirectURL == "" {
		return nil, errors.New("phonepe: pay response has no redirect url")
	}

	c.log.Debug().
		Str("merchant_order_id", session.CorrelationID).
		Str("order_id", resp.OrderID).
		Msg("Checkout order created")

	return &ports.PaymentRedirect{
		RedirectURL:    resp.RedirectURL,
		GatewayOrderID: resp.OrderID,
		RawPayload:     json.RawMessage(raw),
	}, nil
}

// GetStatus fetches the authoritative order state by merchant order id.
func (c *Client) GetStatus(ctx context.Context, correlationID string) (*ports.GatewayStatus, error) {
	if correlationID == "" {
		return nil, errors.New("phonepe: correlation id is required")
	}

	start := c.now()
	defer func() { c.metrics.ObserveGateway("status", c.now().Sub(start)) }()

	endpoint := c.pgURL + fmt.Sprintf(statusPath, url.PathEscape(correlationID))
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp orderStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("phonepe: decode status response: %w", err)
	}

	status := &ports.GatewayStatus{
		State:       mapState(resp.State),
		AmountMinor: resp.Amount,
		RawPayload:  json.RawMessage(raw),
	}
	if detail := pickPayment(resp.PaymentDetails); detail != nil {
		status.ExternalTransactionID = detail.TransactionID
		if detail.ErrorCode != "" {
			status.Message = detail.ErrorCode
		}
	}
	if resp.ErrorCode != "" {
		status.Message = resp.ErrorCode
		if resp.DetailedError != "" {
			status.Message += ": " + resp.DetailedError
		}
	}
	return status, nil
}

// mapState folds PhonePe order states onto the three the reconciler knows.
// Anything unrecognized is treated as still pending.
func mapState(s string) domain.GatewayState {
	switch strings.ToUpper(s) {
	case "COMPLETED":
		return domain.GatewayStateCompleted
	case "FAILED":
		return domain.GatewayStateFailed
	default:
		return domain.GatewayStatePending
	}
}

// pickPayment returns the completed attempt if any, else the latest one.
func pickPayment(details []paymentDetail) *paymentDetail {
	if len(details) == 0 {
		return nil
	}
	for i := range details {
		if strings.EqualFold(details[i].State, "COMPLETED") {
			return &details[i]
		}
	}
	return &details[len(details)-1]
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("phonepe: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("phonepe: %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("phonepe: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func newAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
