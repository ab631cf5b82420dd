package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	tenantdomain "github.com/raylanfranco/whitelabel-admin/internal/tenant/domain"
)

type createTenantRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Tier      string `json:"tier"`
}

// @Summary      Create Tenant
// @Description  Sign up a new business account
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        request body createTenantRequest true "Create Tenant Request"
// @Success      200  {object}  tenantdomain.Tenant
// @Router       /api/tenants [post]
func (s *Server) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Create(c.Request.Context(), tenantdomain.CreateTenantRequest{
		Name:      req.Name,
		Subdomain: req.Subdomain,
		Email:     req.Email,
		Phone:     req.Phone,
		Tier:      req.Tier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.issueToken(resp.ID.String(), resp.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp, "token": token})
}

// @Summary      Get Tenant
// @Description  Fetch the authenticated tenant profile
// @Tags         tenants
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  tenantdomain.Tenant
// @Router       /api/tenant [get]
func (s *Server) GetTenant(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.tenantSvc.Get(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Update Tenant
// @Description  Update the authenticated tenant profile
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  tenantdomain.Tenant
// @Router       /api/tenant [patch]
func (s *Server) UpdateTenant(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req tenantdomain.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Update(c.Request.Context(), tenantID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Audit Logs
// @Description  Recent account and billing mutations
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Router       /api/audit [get]
func (s *Server) ListAuditLogs(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	entries, err := s.auditSvc.List(c.Request.Context(), tenantID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) issueToken(tenantID, subject string) (string, error) {
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": tenantID,
		"sub":       subject,
		"iat":       now.Unix(),
		"exp":       now.Add(30 * 24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
