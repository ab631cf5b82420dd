package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/internal/messaging/twilio"
)

// Providers retry on non-2xx, so handler-level failures after signature
// verification are logged and acknowledged rather than surfaced.

// WebhookHealth lets providers verify the endpoint is reachable.
func (s *Server) WebhookHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Stripe Webhook
// @Description  Verified Stripe event ingest with replay dedupe
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Router       /webhooks/stripe [post]
func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.IngestStripe(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// TwilioInbound receives an inbound SMS for a tenant and runs keyword
// automation. The response body is empty TwiML so Twilio does not send a
// second reply on top of ours.
func (s *Server) TwilioInbound(c *gin.Context) {
	tenantID, err := parseID(c.Param("tenantID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !s.validTwilioSignature(c) {
		AbortWithError(c, messagingdomain.ErrInvalidSignature)
		return
	}

	_, err = s.messagingSvc.HandleInboundSMS(c.Request.Context(), tenantID, messagingdomain.InboundSMSRequest{
		From:              c.PostForm("From"),
		To:                c.PostForm("To"),
		Body:              c.PostForm("Body"),
		ProviderMessageID: c.PostForm("MessageSid"),
	})
	if err != nil {
		s.log.Warn("inbound sms handling failed",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)
}

// TwilioStatus applies a delivery status callback to the message log.
func (s *Server) TwilioStatus(c *gin.Context) {
	tenantID, err := parseID(c.Param("tenantID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !s.validTwilioSignature(c) {
		AbortWithError(c, messagingdomain.ErrInvalidSignature)
		return
	}

	err = s.messagingSvc.UpdateDeliveryStatus(c.Request.Context(), tenantID, messagingdomain.DeliveryStatusUpdate{
		ProviderMessageID: c.PostForm("MessageSid"),
		Status:            c.PostForm("MessageStatus"),
		ErrorMessage:      c.PostForm("ErrorMessage"),
	})
	if err != nil {
		s.log.Warn("delivery status not applied",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// SendGridEvents folds a SendGrid event batch into the message log.
func (s *Server) SendGridEvents(c *gin.Context) {
	tenantID, err := parseID(c.Param("tenantID"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var events []messagingdomain.EmailEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.messagingSvc.ApplyEmailEvents(c.Request.Context(), tenantID, events); err != nil {
		s.log.Warn("email events not applied",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) validTwilioSignature(c *gin.Context) bool {
	if err := c.Request.ParseForm(); err != nil {
		return false
	}
	callbackURL := s.cfg.BaseURL + c.Request.URL.Path
	return twilio.ValidateSignature(
		s.cfg.Twilio.AuthToken,
		callbackURL,
		c.Request.PostForm,
		c.GetHeader("X-Twilio-Signature"),
	)
}
