package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/logger"
)

// SignatureHeader carries the HMAC-SHA512 digest Paystack computes over the
// raw webhook body.
const SignatureHeader = "X-Paystack-Signature"

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Client talks to the Paystack REST API and verifies webhook signatures.
type Client struct {
	http      *http.Client
	baseURL   string
	secretKey string
}

// NewClient builds a Paystack client from configuration.
func NewClient(ctx context.Context, cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errSecretKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	if logg != nil {
		logg.Info(ctx, "paystack client initialized")
	}

	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		secretKey: secretKey,
	}, nil
}

// InitializeRequest starts a hosted checkout for a deposit.
type InitializeRequest struct {
	Email       string `json:"email"`
	AmountKobo  int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// InitializeResult is the subset of the initialize response the service needs.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the subset of the verify response the service needs.
type VerifyResult struct {
	Status     string `json:"status"`
	Reference  string `json:"reference"`
	AmountKobo int64  `json:"amount"`
	PaidAt     string `json:"paid_at"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeTransaction asks Paystack for a checkout URL for the deposit.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	var result InitializeResult
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyTransaction fetches the provider-side status for a reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var result VerifyResult
	path := "/transaction/verify/" + reference
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifySignature checks the webhook digest against the raw request body.
// Comparison is constant time.
func (c *Client) VerifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding paystack request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling paystack: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading paystack response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decoding paystack response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return fmt.Errorf("paystack error (%d): %s", resp.StatusCode, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding paystack data: %w", err)
		}
	}
	return nil
}
