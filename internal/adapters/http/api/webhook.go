package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	service "github.com/okian/hookscore/internal/app"
	"github.com/okian/hookscore/internal/domain/signature"
	"github.com/okian/hookscore/pkg/logger"
	"github.com/okian/hookscore/pkg/metrics"
)

// GitHub delivery headers.
const (
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderEvent     = "X-GitHub-Event"
	HeaderSignature = signature.Header
)

// Ingester stores verified deliveries.
type Ingester interface {
	Ingest(ctx context.Context, d service.Delivery) (service.IngestResult, error)
}

// WebhookHandler handles /webhooks/github.
type WebhookHandler struct {
	ingester Ingester
	verifier signature.Verifier
	maxBytes int64
	logger   logger.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(ingester Ingester, verifier signature.Verifier, maxBytes int64) *WebhookHandler {
	return &WebhookHandler{
		ingester: ingester,
		verifier: verifier,
		maxBytes: maxBytes,
		logger:   logger.Named("webhook"),
	}
}

type webhookStatus struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HandleWebhook accepts POST deliveries; GET is a liveness probe.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, webhookStatus{Status: "ok", Service: "github-webhook-handler"})
	case http.MethodPost:
		h.handleDelivery(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *WebhookHandler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_webhook"
	ctx := r.Context()

	deliveryID := r.Header.Get(HeaderDelivery)
	eventType := r.Header.Get(HeaderEvent)
	sig := r.Header.Get(HeaderSignature)
	if deliveryID == "" || eventType == "" || sig == "" {
		metrics.RecordWebhookOutcome(metrics.OutcomeBadRequest)
		writeError(w, http.StatusBadRequest, "bad_request",
			NewKind(op, errors.New("missing required GitHub headers")))
		return
	}

	// The signature covers the exact bytes, so read before any decoding.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordWebhookOutcome(metrics.OutcomeTooLarge)
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", NewKind(op, ErrPayloadTooLarge))
			return
		}
		metrics.RecordWebhookOutcome(metrics.OutcomeBadRequest)
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.verifier.Verify(body, sig); err != nil {
		metrics.RecordWebhookOutcome(metrics.OutcomeUnauthorized)
		h.logger.Warn(ctx, "signature rejected",
			logger.String("deliveryId", deliveryID),
			logger.Error(err),
		)
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}

	res, err := h.ingester.Ingest(ctx, service.Delivery{
		DeliveryID: deliveryID,
		EventType:  eventType,
		Payload:    body,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, service.ErrInvalidPayload), errors.Is(err, service.ErrInvalidDelivery):
		metrics.RecordWebhookOutcome(metrics.OutcomeBadRequest)
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	default:
		metrics.RecordWebhookOutcome(metrics.OutcomeError)
		h.logger.Error(ctx, "ingest failed",
			logger.String("deliveryId", deliveryID),
			logger.String("eventType", eventType),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}
