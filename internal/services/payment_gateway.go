package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

var errGatewayNotConfigured = errors.New("paymongo secret key is not configured")

type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	ArchivePaymentLink(ctx context.Context, linkID string) error
}

type PaymentLinkRequest struct {
	AmountMinor int64
	Description string
	Remarks     string
	Metadata    map[string]string
}

type PaymentLink struct {
	ID              string
	CheckoutURL     string
	ReferenceNumber string
}

type RefundRequest struct {
	PaymentID   string
	AmountMinor int64
	Reason      string
	Notes       string
}

type Refund struct {
	ID     string
	Status string
}

// PayMongoError is one entry of the "errors" array returned by the API.
type PayMongoError struct {
	Code   string         `json:"code"`
	Detail string         `json:"detail"`
	Source map[string]any `json:"source,omitempty"`
}

type payMongoErrorBody struct {
	Errors []PayMongoError `json:"errors"`
}

type payMongoEnvelope[T any] struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes T      `json:"attributes"`
	} `json:"data"`
}

type linkAttributes struct {
	Amount          int64             `json:"amount"`
	Description     string            `json:"description"`
	Remarks         string            `json:"remarks,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CheckoutURL     string            `json:"checkout_url,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	Status          string            `json:"status,omitempty"`
}

type refundAttributes struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status,omitempty"`
}

type PayMongoConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	// BreakerFailures consecutive transport or 5xx failures open the breaker
	// for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type PayMongoGateway struct {
	client     *resty.Client
	breaker    *gobreaker.CircuitBreaker
	configured bool
}

func NewPayMongoGateway(cfg PayMongoConfig) *PayMongoGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paymongo.com/v1"
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(cfg.SecretKey, "").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &PayMongoGateway{
		client:     client,
		breaker:    newGatewayBreaker(cfg.BreakerFailures, cfg.BreakerCooldown),
		configured: cfg.SecretKey != "",
	}
}

func newGatewayBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker {
	if failures == 0 {
		failures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "paymongo",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Rejections of a single request and callers that hang up say nothing
		// about provider health.
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var gwErr *GatewayError
			if errors.As(err, &gwErr) {
				return gwErr.StatusCode > 0 && gwErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("payment gateway breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func (g *PayMongoGateway) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	var body payMongoEnvelope[linkAttributes]
	body.Data.Attributes = linkAttributes{
		Amount:      req.AmountMinor,
		Description: req.Description,
		Remarks:     req.Remarks,
		Metadata:    req.Metadata,
	}

	var result payMongoEnvelope[linkAttributes]
	if err := g.post(ctx, "create_payment_link", "/links", body, &result); err != nil {
		return nil, err
	}
	if result.Data.ID == "" || result.Data.Attributes.CheckoutURL == "" {
		return nil, &GatewayError{Op: "create_payment_link", Err: errors.New("response is missing link id or checkout url")}
	}

	return &PaymentLink{
		ID:              result.Data.ID,
		CheckoutURL:     result.Data.Attributes.CheckoutURL,
		ReferenceNumber: result.Data.Attributes.ReferenceNumber,
	}, nil
}

func (g *PayMongoGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	var body payMongoEnvelope[refundAttributes]
	body.Data.Attributes = refundAttributes{
		PaymentID: req.PaymentID,
		Amount:    req.AmountMinor,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}

	var result payMongoEnvelope[refundAttributes]
	if err := g.post(ctx, "create_refund", "/refunds", body, &result); err != nil {
		return nil, err
	}
	return &Refund{ID: result.Data.ID, Status: result.Data.Attributes.Status}, nil
}

func (g *PayMongoGateway) ArchivePaymentLink(ctx context.Context, linkID string) error {
	var result payMongoEnvelope[linkAttributes]
	return g.post(ctx, "archive_payment_link", "/links/"+url.PathEscape(linkID)+"/archive", nil, &result)
}

func (g *PayMongoGateway) post(ctx context.Context, op, path string, body any, result any) error {
	if !g.configured {
		return &GatewayError{Op: op, Err: errGatewayNotConfigured}
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.send(ctx, op, path, body, result)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &GatewayError{Op: op, Err: err}
	}
	return err
}

func (g *PayMongoGateway) send(ctx context.Context, op, path string, body any, result any) error {
	var errBody payMongoErrorBody
	request := g.client.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&errBody)
	if body != nil {
		request.SetBody(body)
	}

	resp, err := request.Post(path)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	if resp.IsError() {
		var detail any = errBody.Errors
		if len(errBody.Errors) == 0 {
			detail = strings.TrimSpace(resp.String())
		}
		return &GatewayError{Op: op, StatusCode: resp.StatusCode(), Detail: detail}
	}
	return nil
}
