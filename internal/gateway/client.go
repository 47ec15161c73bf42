// Package gateway is the HTTP client for the remote appointment service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"klemz/internal/metrics"
	"klemz/internal/models"
)

// TokenSource supplies the bearer token for authenticated endpoints.
// An error means no usable session exists.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the appointment service. All methods take a context and
// return typed errors from errors.go; classification happens in do().
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zerolog.Logger
}

// NewClient constructs a client for the given base URL.
func NewClient(baseURL string, tokens TokenSource, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// CreateRequest is the body for POST /appointment/appointments/create.
// The endpoint is unauthenticated; identity rides in the body.
type CreateRequest struct {
	ProviderID     string `json:"barberID"`
	UserID         string `json:"userID"`
	OfferingID     string `json:"haircutID"`
	TimeOfDay      string `json:"time"`
	Date           string `json:"date"`
	IdempotencyKey string `json:"-"`
}

// remoteError is the error envelope the backend uses for rejections.
type remoteError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ListProviders returns all barbers. Requires a session token.
func (c *Client) ListProviders(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	err := c.doGet(ctx, "/barber/barbers", "list_providers", true, &providers)
	metrics.IncGatewayRequest("list_providers", outcome(err))
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// ListToday returns today's appointments across all providers. This is a
// best-effort availability hint: any failure degrades to an empty list and
// never propagates to the caller.
func (c *Client) ListToday(ctx context.Context) []models.Appointment {
	var appts []models.Appointment
	err := c.doGet(ctx, "/appointment/todayonly", "list_today", false, &appts)
	metrics.IncGatewayRequest("list_today", outcome(err))
	if err != nil {
		c.logger.Debug().Err(err).Msg("today's appointments unavailable, degrading to none")
		return nil
	}
	return appts
}

// ListByUser returns the user's own appointments. Requires a session token.
// An empty remote result is an empty slice, not an error.
func (c *Client) ListByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	var appts []models.Appointment
	path := "/appointment/appointments/" + url.PathEscape(userID)
	err := c.doGet(ctx, path, "list_by_user", true, &appts)
	metrics.IncGatewayRequest("list_by_user", outcome(err))
	if err != nil {
		return nil, err
	}
	return appts, nil
}

// Create submits a new appointment. The remote performs the authoritative
// slot-conflict check; a taken slot comes back as a ValidationError with the
// remote's message intact.
func (c *Client) Create(ctx context.Context, reqBody CreateRequest) (*models.Appointment, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal create request: %w", err)
	}

	endpoint := c.baseURL + "/appointment/appointments/create"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if reqBody.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", reqBody.IdempotencyKey)
	}

	var appt models.Appointment
	err = c.do(req, "create", &appt)
	metrics.IncGatewayRequest("create", outcome(err))
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// Remove deletes an appointment. Requires a session token. Repeated calls
// after success surface NotFoundError; the caller treats that as a no-op.
func (c *Client) Remove(ctx context.Context, appointmentID string) error {
	endpoint := c.baseURL + "/appointment/appointments/" + url.PathEscape(appointmentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	err = c.do(req, "remove", nil)
	metrics.IncGatewayRequest("remove", outcome(err))
	if _, ok := err.(*NotFoundError); ok {
		return &NotFoundError{ID: appointmentID}
	}
	return err
}

// ListOfferings returns the haircut catalog. Unauthenticated.
func (c *Client) ListOfferings(ctx context.Context) ([]models.ServiceOffering, error) {
	var offerings []models.ServiceOffering
	err := c.doGet(ctx, "/haircut/haircuts", "list_offerings", false, &offerings)
	metrics.IncGatewayRequest("list_offerings", outcome(err))
	if err != nil {
		return nil, err
	}
	return offerings, nil
}

// doGet issues an authenticated or anonymous GET. op is the endpoint name
// used for error context, matching the metrics labels.
func (c *Client) doGet(ctx context.Context, path, op string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	if authed {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}
	return c.do(req, op, out)
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return &AuthError{Reason: "no session token"}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.classify(resp, op)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classify maps a non-2xx response onto the error taxonomy. The remote's own
// message is preserved for validation rejections so the user sees it verbatim.
func (c *Client) classify(resp *http.Response, op string) error {
	var remote remoteError
	_ = json.NewDecoder(resp.Body).Decode(&remote)
	msg := remote.Message
	if msg == "" {
		msg = remote.Error
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if msg == "" {
			msg = "token rejected"
		}
		return &AuthError{Reason: msg}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		if msg == "" {
			msg = fmt.Sprintf("request rejected (http %d)", resp.StatusCode)
		}
		return &ValidationError{Message: msg}
	default:
		return &NetworkError{Op: op, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
