package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	messagingdomain "github.com/raylanfranco/whitelabel-admin/internal/messaging/domain"
	"github.com/raylanfranco/whitelabel-admin/pkg/db/pagination"
)

// @Summary      Send SMS
// @Description  Send a text to a client, metered against the monthly cap
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body messagingdomain.SendSMSRequest true "Send SMS Request"
// @Success      200  {object}  messagingdomain.MessageLog
// @Router       /api/messages/sms [post]
func (s *Server) SendSMS(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req messagingdomain.SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.messagingSvc.SendSMS(c.Request.Context(), tenantID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Send Email
// @Description  Send an email to a client, metered against the monthly cap
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body messagingdomain.SendEmailRequest true "Send Email Request"
// @Success      200  {object}  messagingdomain.MessageLog
// @Router       /api/messages/email [post]
func (s *Server) SendEmail(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req messagingdomain.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.messagingSvc.SendEmail(c.Request.Context(), tenantID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Messages
// @Description  Page through the tenant message history
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        channel     query  string  false  "Channel"
// @Param        direction   query  string  false  "Direction"
// @Param        page_token  query  string  false  "Page Token"
// @Param        page_size   query  int     false  "Page Size"
// @Router       /api/messages [get]
func (s *Server) ListMessages(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var query struct {
		pagination.Pagination
		Channel   string `form:"channel"`
		Direction string `form:"direction"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.messagingSvc.List(c.Request.Context(), tenantID, messagingdomain.ListMessagesRequest{
		Channel:   query.Channel,
		Direction: query.Direction,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
