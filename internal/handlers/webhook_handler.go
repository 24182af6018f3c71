package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lapakgo/payment-reconciler/internal/models"
	"github.com/lapakgo/payment-reconciler/internal/telemetry"
)

// SignatureHeader carries the aggregator's HMAC-SHA256 of the raw body, hex
// encoded.
const SignatureHeader = "X-Callback-Signature"

type transactionProcessor interface {
	ProcessTransaction(ctx context.Context, tx models.BankTransaction) error
}

// WebhookHandler is the gateway for the bank aggregator's mutation callback.
// One bad record never fails the batch: outcomes are tallied per record and
// the provider always gets a 200 unless authentication or decoding failed.
type WebhookHandler struct {
	secret     []byte
	reconciler transactionProcessor
}

func NewWebhookHandler(secret string, reconciler transactionProcessor) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), reconciler: reconciler}
}

func (h *WebhookHandler) HandleBankMutations(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		telemetry.Logger.Warn("Webhook signature mismatch",
			zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var summary models.BatchSummary
	for _, tx := range payload.Data {
		outcome := classify(h.reconciler.ProcessTransaction(c.Request.Context(), tx))
		switch outcome {
		case "processed":
			summary.Processed++
		case "skipped":
			summary.Skipped++
		default:
			summary.Errors++
		}
		telemetry.WebhookRecords.WithLabelValues(outcome).Inc()
	}

	telemetry.Logger.Info("Webhook batch handled",
		zap.Int("records", len(payload.Data)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
	)
	c.JSON(http.StatusOK, summary)
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	// Compare raw MAC bytes so the hex casing of the header does not matter.
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), sig)
}

// classify maps a pipeline error to a batch outcome. Duplicates and races are
// legitimate redeliveries, not failures.
func classify(err error) string {
	switch {
	case err == nil:
		return "processed"
	case errors.Is(err, models.ErrDuplicateTransaction),
		errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrInvalidTransition):
		return "skipped"
	default:
		return "error"
	}
}
