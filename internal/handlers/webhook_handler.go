package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	eventLinkPaymentPaid = "link.payment.paid"
	signatureHeader      = "Paymongo-Signature"
)

type paymentReconciler interface {
	ReconcilePayment(ctx context.Context, linkID string, transactionID string) error
}

type WebhookHandler struct {
	reconciler    paymentReconciler
	ledger        services.EventLedger
	signingSecret string
}

func NewWebhookHandler(reconciler paymentReconciler, ledger services.EventLedger, signingSecret string) *WebhookHandler {
	if ledger == nil {
		ledger = services.NoopEventLedger{}
	}
	return &WebhookHandler{reconciler: reconciler, ledger: ledger, signingSecret: signingSecret}
}

type payMongoEvent struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type     string `json:"type"`
			Livemode bool   `json:"livemode"`
			Data     struct {
				ID         string `json:"id"`
				Type       string `json:"type"`
				Attributes struct {
					PaymentLinkID string            `json:"payment_link_id"`
					Payments      []json.RawMessage `json:"payments"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// HandlePayMongo receives provider events. Anything other than a paid payment
// link is acknowledged and ignored so the provider does not retry it.
func (h *WebhookHandler) HandlePayMongo(c *fiber.Ctx) error {
	ctx := c.UserContext()
	body := c.Body()

	if h.signingSecret != "" && !verifyPayMongoSignature(c.Get(signatureHeader), body, h.signingSecret) {
		slog.WarnContext(ctx, "rejected webhook with invalid signature")
		return fail(c, fiber.StatusUnauthorized, "Invalid signature")
	}

	var event payMongoEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid event payload")
	}

	eventID := event.Data.ID
	eventType := event.Data.Attributes.Type
	if eventType != eventLinkPaymentPaid {
		slog.DebugContext(ctx, "ignoring webhook event", "event_id", eventID, "event_type", eventType)
		return c.JSON(fiber.Map{"received": true})
	}

	if eventID != "" {
		seen, err := h.ledger.Seen(ctx, eventID)
		if err != nil {
			slog.WarnContext(ctx, "webhook ledger lookup failed", "event_id", eventID, "error", err)
		}
		if seen {
			return c.JSON(fiber.Map{"received": true, "duplicate": true})
		}
	}

	linkID, transactionID := extractPaymentReferences(&event)
	if err := h.reconciler.ReconcilePayment(ctx, linkID, transactionID); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			slog.WarnContext(ctx, "paid event without payment references",
				"event_id", eventID,
				"error", err,
			)
			return c.JSON(fiber.Map{"received": true})
		}
		slog.ErrorContext(ctx, "payment reconciliation failed",
			"event_id", eventID,
			"payment_link_id", linkID,
			"error", err,
		)
		return fail(c, fiber.StatusInternalServerError, "Failed to process event")
	}

	if eventID != "" {
		if err := h.ledger.Remember(ctx, eventID); err != nil {
			slog.WarnContext(ctx, "webhook ledger write failed", "event_id", eventID, "error", err)
		}
	}
	return c.JSON(fiber.Map{"received": true})
}

// extractPaymentReferences reads the link and transaction ids from either a
// payment resource or a link resource.
func extractPaymentReferences(event *payMongoEvent) (linkID string, transactionID string) {
	resource := event.Data.Attributes.Data
	linkID = resource.Attributes.PaymentLinkID

	switch resource.Type {
	case "link":
		if linkID == "" {
			linkID = resource.ID
		}
		if len(resource.Attributes.Payments) > 0 {
			transactionID = paymentIDFromRaw(resource.Attributes.Payments[0])
		}
	default:
		transactionID = resource.ID
	}
	return strings.TrimSpace(linkID), strings.TrimSpace(transactionID)
}

// paymentIDFromRaw accepts "pay_x", {"id":"pay_x"} or {"data":{"id":"pay_x"}}.
func paymentIDFromRaw(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var wrapped struct {
		ID   string `json:"id"`
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return ""
	}
	if wrapped.Data.ID != "" {
		return wrapped.Data.ID
	}
	return wrapped.ID
}

// verifyPayMongoSignature checks "t=<ts>,te=<hex>,li=<hex>" against
// HMAC-SHA256(secret, t + "." + body).
func verifyPayMongoSignature(header string, body []byte, secret string) bool {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "te", "li":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}
