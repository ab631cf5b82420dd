package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/raylanfranco/whitelabel-admin/internal/billing/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/pagination"
)

type subscribeRequest struct {
	Tier string `json:"tier"`
}

// @Summary      Subscribe
// @Description  Create the subscription plus one-time setup fee invoice
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body subscribeRequest true "Subscribe Request"
// @Success      200  {object}  billingdomain.SubscriptionResult
// @Router       /api/payments/subscribe [post]
func (s *Server) Subscribe(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.CreateSubscription(c.Request.Context(), tenantID, req.Tier)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type changeTierRequest struct {
	Tier string `json:"tier"`
}

// @Summary      Change Tier
// @Description  Swap the subscription price with proration
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/payments/change-tier [post]
func (s *Server) ChangeTier(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.billingSvc.ChangeTier(c.Request.Context(), tenantID, req.Tier); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"tier": req.Tier}})
}

// @Summary      Subscription Status
// @Description  Subscription state with current-period usage
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  billingdomain.SubscriptionStatusResult
// @Router       /api/payments/subscription [get]
func (s *Server) SubscriptionStatus(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.billingSvc.SubscriptionStatus(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type chargeRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Description   string `json:"description"`
	ClientID      string `json:"client_id"`
	AppointmentID string `json:"appointment_id"`
}

// @Summary      Charge
// @Description  Create a destination charge for a client payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body chargeRequest true "Charge Request"
// @Success      200  {object}  billingdomain.ChargeResult
// @Router       /api/payments/charge [post]
func (s *Server) Charge(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainReq := billingdomain.ChargeRequest{
		AmountCents: req.AmountCents,
		Description: req.Description,
	}
	if req.ClientID != "" {
		clientID, err := parseID(req.ClientID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		domainReq.ClientID = &clientID
	}
	if req.AppointmentID != "" {
		appointmentID, err := parseID(req.AppointmentID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		domainReq.AppointmentID = &appointmentID
	}

	resp, err := s.billingSvc.Charge(c.Request.Context(), tenantID, domainReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type depositRequest struct {
	AppointmentID string `json:"appointment_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// @Summary      Charge Deposit
// @Description  Charge an appointment deposit
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/payments/deposit [post]
func (s *Server) ChargeDeposit(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	appointmentID, err := parseID(req.AppointmentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingSvc.ChargeDeposit(c.Request.Context(), tenantID, appointmentID, req.AmountCents)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type refundRequest struct {
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
	Reason        string `json:"reason"`
}

// @Summary      Refund
// @Description  Refund part or all of a completed charge
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/payments/refund [post]
func (s *Server) Refund(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	transactionID, err := parseID(req.TransactionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingSvc.Refund(c.Request.Context(), tenantID, transactionID, req.AmountCents, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Create Connect Account
// @Description  Start Connect onboarding and return the hosted link
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Router       /api/payments/connect [post]
func (s *Server) CreateConnectAccount(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.billingSvc.CreateConnectAccount(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Connect Status
// @Description  Refresh and return Connect capability flags
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Router       /api/payments/connect [get]
func (s *Server) ConnectStatus(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.billingSvc.ConnectStatus(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Transactions
// @Description  Page through the tenant transaction history
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        type        query  string  false  "Type"
// @Param        status      query  string  false  "Status"
// @Param        page_token  query  string  false  "Page Token"
// @Param        page_size   query  int     false  "Page Size"
// @Router       /api/payments/transactions [get]
func (s *Server) ListTransactions(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var query struct {
		pagination.Pagination
		Type   string `form:"type"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ListTransactions(c.Request.Context(), tenantID, billingdomain.ListTransactionsRequest{
		Type:      query.Type,
		Status:    query.Status,
		PageToken: query.PageToken,
		PageSize:  int(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
