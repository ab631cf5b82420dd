package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
	usagedomain "github.com/raylanfranco/whitelabel-admin/internal/usage/domain"
	webhookdomain "github.com/raylanfranco/whitelabel-admin/internal/webhook/domain"
)

// ErrUnauthorized rejects requests without a valid token.
var ErrUnauthorized = errors.New("unauthorized")

var errInvalidRequest = errors.New("invalid_request")

func invalidRequestError() error { return errInvalidRequest }

var errStatus = map[error]int{
	ErrUnauthorized:   http.StatusUnauthorized,
	errInvalidRequest: http.StatusBadRequest,

	tenantdomain.ErrTenantNotFound:     http.StatusNotFound,
	tenantdomain.ErrInvalidTenant:      http.StatusBadRequest,
	tenantdomain.ErrInvalidSubdomain:   http.StatusBadRequest,
	tenantdomain.ErrSubdomainTaken:     http.StatusConflict,
	tenantdomain.ErrInvalidTier:        http.StatusBadRequest,
	tenantdomain.ErrInvalidStatus:      http.StatusBadRequest,
	tenantdomain.ErrTenantDeactivated:  http.StatusForbidden,
	tenantdomain.ErrMessagingSuspended: http.StatusForbidden,

	clientdomain.ErrClientNotFound: http.StatusNotFound,
	clientdomain.ErrInvalidPhone:   http.StatusBadRequest,

	appointmentdomain.ErrAppointmentNotFound:   http.StatusNotFound,
	appointmentdomain.ErrInvalidAppointment:    http.StatusBadRequest,
	appointmentdomain.ErrAppointmentNotPending: http.StatusConflict,
	appointmentdomain.ErrWaitlistEntryNotFound: http.StatusNotFound,
	appointmentdomain.ErrWaitlistEntryClosed:   http.StatusConflict,

	usagedomain.ErrInvalidChannel: http.StatusBadRequest,
	usagedomain.ErrLimitExceeded:  http.StatusTooManyRequests,

	messagingdomain.ErrInvalidRecipient: http.StatusBadRequest,
	messagingdomain.ErrEmptyMessage:     http.StatusBadRequest,
	messagingdomain.ErrInvalidSignature: http.StatusUnauthorized,
	messagingdomain.ErrMessageNotFound:  http.StatusNotFound,
	messagingdomain.ErrProvider:         http.StatusBadGateway,

	billingdomain.ErrAmountTooSmall:       http.StatusBadRequest,
	billingdomain.ErrInvalidAmount:        http.StatusBadRequest,
	billingdomain.ErrTransactionNotFound:  http.StatusNotFound,
	billingdomain.ErrNotRefundable:        http.StatusConflict,
	billingdomain.ErrRefundExceedsCharge:  http.StatusBadRequest,
	billingdomain.ErrConnectNotConfigured: http.StatusPreconditionFailed,
	billingdomain.ErrSubscriptionMissing:  http.StatusPreconditionFailed,
	billingdomain.ErrProcessor:            http.StatusBadGateway,

	webhookdomain.ErrInvalidSignature: http.StatusUnauthorized,
	webhookdomain.ErrMalformedEvent:   http.StatusBadRequest,
}

// AbortWithError maps a domain error onto an HTTP response. Unknown errors
// surface as an opaque internal error.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	for sentinel, mapped := range errStatus {
		if errors.Is(err, sentinel) {
			status = mapped
			code = sentinel.Error()
			break
		}
	}

	message := err.Error()
	if code == "internal_error" {
		message = "internal server error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
