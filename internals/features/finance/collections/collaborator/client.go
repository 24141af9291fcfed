// Package collaborator is the REST client for the back office: voucher
// lookup and issue, and the final payment/refund submission.
package collaborator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/normalizer"
)

var (
	ErrNotFound    = errors.New("collaborator: not found")
	ErrUnavailable = errors.New("collaborator: unavailable")
)

// APIError is a non-2xx answer.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("collaborator: status %d: %s", e.Status, body)
}

func DefaultFlowPaths() map[model.Flow]string {
	return map[model.Flow]string{
		model.FlowCustomerPayment:   "/customer-payments",
		model.FlowOrderPayment:      "/orders/{ref}/payments",
		model.FlowCustomerRefund:    "/refunds/{ref}/payments",
		model.FlowAdvanceCollection: "/advances",
	}
}

type Config struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	FlowPaths map[model.Flow]string

	// breaker
	MaxRequests         uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

// SubmitRequest is the body posted to a flow path.
type SubmitRequest struct {
	Flow        model.Flow                   `json:"flow"`
	CustomerID  string                       `json:"customerId"`
	ReferenceID string                       `json:"referenceId,omitempty"`
	CreatedBy   string                       `json:"createdBy"`
	LocationID  string                       `json:"locationId"`
	Payment     normalizer.SubmissionPayload `json:"payment"`
}

type Client struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	paths := DefaultFlowPaths()
	for f, p := range cfg.FlowPaths {
		if p != "" {
			paths[f] = p
		}
	}
	cfg.FlowPaths = paths
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	c := &Client{cfg: cfg, log: log}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "collaborator",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// 4xx is the caller's fault, not an outage
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

/* =========================================================
   Operations
========================================================= */

// LookupGiftVoucher validates a voucher code for the customer.
func (c *Client) LookupGiftVoucher(ctx context.Context, code, customerID string) (model.VoucherInfo, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("customerId", customerID)

	var out struct {
		ID          flexID      `json:"id"`
		Balance     model.Money `json:"balance"`
		PartPayment flexBool    `json:"partPayment"`
	}
	if err := c.do(ctx, fiber.MethodGet, "/gift-vouchers/validate", q, nil, &out); err != nil {
		return model.VoucherInfo{}, err
	}
	if out.ID == "" {
		return model.VoucherInfo{}, fmt.Errorf("%w: voucher %q", ErrNotFound, code)
	}
	return model.VoucherInfo{ID: string(out.ID), Balance: out.Balance, PartPayment: bool(out.PartPayment)}, nil
}

// IssueGiftVoucher is not idempotent and is never retried here.
func (c *Client) IssueGiftVoucher(ctx context.Context, req model.VoucherIssueRequest) (string, error) {
	var out struct {
		ID flexID `json:"id"`
	}
	if err := c.do(ctx, fiber.MethodPost, "/gift-vouchers", nil, req, &out); err != nil {
		return "", err
	}
	return string(out.ID), nil
}

// Submit posts the final payload to the flow's path and returns the record id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	path, err := c.flowPath(req.Flow, req.ReferenceID)
	if err != nil {
		return "", err
	}
	var out struct {
		ID flexID `json:"id"`
	}
	if err := c.do(ctx, fiber.MethodPost, path, nil, req, &out); err != nil {
		return "", err
	}
	return string(out.ID), nil
}

func (c *Client) flowPath(flow model.Flow, ref string) (string, error) {
	p, ok := c.cfg.FlowPaths[flow]
	if !ok {
		return "", fmt.Errorf("collaborator: no path for flow %q", flow)
	}
	if strings.Contains(p, "{ref}") {
		if ref == "" {
			return "", fmt.Errorf("collaborator: flow %q needs a reference id", flow)
		}
		p = strings.ReplaceAll(p, "{ref}", url.PathEscape(ref))
	}
	return p, nil
}

/* =========================================================
   Transport
========================================================= */

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	timeout := c.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	a := fiber.AcquireAgent()
	a.JSONEncoder(sonic.Marshal)
	a.JSONDecoder(sonic.Unmarshal)
	a.Timeout(timeout)

	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.cfg.Token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.Token)
	}
	if len(query) > 0 {
		a.QueryString(query.Encode())
	}
	if body != nil {
		a.JSON(body)
	}

	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return fmt.Errorf("collaborator: build request: %w", err)
	}

	started := time.Now()
	code, raw, errs := a.Bytes()
	c.log.Debug("collaborator call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", code),
		zap.Duration("took", time.Since(started)),
	)
	if len(errs) > 0 {
		return fmt.Errorf("collaborator %s %s: %w", method, path, errors.Join(errs...))
	}

	switch {
	case code == fiber.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case code < 200 || code > 299:
		return &APIError{Status: code, Body: string(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	// some endpoints wrap the payload in {"data": ...}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		raw = envelope.Data
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("collaborator: decode %s %s: %w", method, path, err)
	}
	return nil
}

/* =========================================================
   Lenient decoding
========================================================= */

// flexID accepts "id": 12 as well as "id": "GV-12".
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	*f = flexID(s)
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch s {
	case "", "null":
		*f = false
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = n != 0
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	*f = flexBool(v)
	return nil
}
