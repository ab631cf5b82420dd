package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clientdomain "github.com/raylanfranco/whitelabel-admin/internal/client/domain"
)

type chatbotLeadRequest struct {
	Subdomain string `json:"subdomain"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
}

// @Summary      Capture Chatbot Lead
// @Description  Public lead capture from the embedded chatbot widget
// @Tags         chatbot
// @Accept       json
// @Produce      json
// @Param        request body chatbotLeadRequest true "Chatbot Lead Request"
// @Success      200  {object}  clientdomain.Client
// @Router       /api/chatbot/lead [post]
func (s *Server) CaptureChatbotLead(c *gin.Context) {
	var req chatbotLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Subdomain) == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.tenantSvc.GetBySubdomain(c.Request.Context(), req.Subdomain)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.clientSvc.CaptureLead(c.Request.Context(), record.ID, clientdomain.CaptureLeadRequest{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Note:   req.Notes,
		Source: clientdomain.SourceChatbot,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Leads
// @Description  All captured clients for the tenant
// @Tags         chatbot
// @Produce      json
// @Security     BearerAuth
// @Router       /api/chatbot/leads [get]
func (s *Server) ListLeads(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
