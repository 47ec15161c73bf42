package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PaymentClient initiates a hosted payment for a booking. It is deliberately
// opaque: one initialize call returning an authorization URL, no status
// polling and no reconciliation.
type PaymentClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewPaymentClient constructs a client for the payment provider.
func NewPaymentClient(baseURL, secretKey string) *PaymentClient {
	return &PaymentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize starts a payment and returns the authorization URL the user
// completes it at.
func (p *PaymentClient) Initialize(ctx context.Context, email string, amountMinor int64, currency string) (string, error) {
	body, err := json.Marshal(initializeRequest{
		Email:    email,
		Amount:   amountMinor,
		Currency: currency,
	})
	if err != nil {
		return "", err
	}

	endpoint := p.baseURL + "/transaction/initialize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &NetworkError{Op: "payment initialize", Err: err}
	}
	defer resp.Body.Close()

	var out initializeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &NetworkError{Op: "payment initialize", Err: err}
	}
	if !out.Status || out.Data.AuthorizationURL == "" {
		return "", &ValidationError{Message: fmt.Sprintf("payment not initialized: %s", out.Message)}
	}
	return out.Data.AuthorizationURL, nil
}
