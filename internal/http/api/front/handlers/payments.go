package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/billing"
	"github.com/router-for-me/BizCardCloud/internal/gateway"
	log "github.com/sirupsen/logrus"
)

const maxCallbackBody = 1 << 20

// PaymentCallbackHandler receives gateway callbacks.
type PaymentCallbackHandler struct {
	reconciler *billing.WebhookReconciler
}

// NewPaymentCallbackHandler constructs a PaymentCallbackHandler.
func NewPaymentCallbackHandler(reconciler *billing.WebhookReconciler) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{reconciler: reconciler}
}

// Callback reconciles one gateway notification. It always answers 200 so the
// gateway stops retrying; the body carries a machine-readable code.
func (h *PaymentCallbackHandler) Callback(c *gin.Context) {
	body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if errRead != nil {
		h.ack(c, "", apperr.Wrap(errRead, apperr.KindGateway, apperr.CodeInvalidPayload, "payments: read callback"))
		return
	}
	cb, errParse := gateway.ParseCallback(c.ContentType(), body, c.Request.Header)
	if errParse != nil {
		h.ack(c, "", errParse)
		return
	}
	outcome, errHandle := h.reconciler.HandleCallback(c.Request.Context(), cb)
	if errHandle != nil {
		h.ack(c, cb.OrderID, errHandle)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"code":     outcome.Code,
		"order_id": outcome.OrderID,
		"status":   outcome.Status,
	})
}

func (h *PaymentCallbackHandler) ack(c *gin.Context, orderID string, err error) {
	entry := log.WithError(err).WithFields(log.Fields{"order_id": orderID, "code": apperr.CodeOf(err)})
	if apperr.KindOf(err) == apperr.KindPersistence {
		entry.Error("payments: callback failed")
	} else {
		entry.Warn("payments: callback rejected")
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "code": apperr.CodeOf(err), "order_id": orderID})
}
