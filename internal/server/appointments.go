package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appointmentdomain "github.com/raylanfranco/whitelabel-admin/internal/appointment/domain"
)

type createAppointmentRequest struct {
	ClientID        string    `json:"client_id"`
	Service         string    `json:"service"`
	StartsAt        time.Time `json:"starts_at"`
	DepositRequired bool      `json:"deposit_required"`
}

// @Summary      Create Appointment
// @Description  Book a slot for a client
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body createAppointmentRequest true "Create Appointment Request"
// @Success      200  {object}  appointmentdomain.Appointment
// @Router       /api/appointments [post]
func (s *Server) CreateAppointment(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseID(req.ClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.appointmentSvc.Create(c.Request.Context(), tenantID, appointmentdomain.CreateAppointmentRequest{
		ClientID:        clientID,
		Service:         req.Service,
		StartsAt:        req.StartsAt,
		DepositRequired: req.DepositRequired,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Appointments
// @Description  Appointments in a time range, defaulting to the next 30 days
// @Tags         appointments
// @Produce      json
// @Security     BearerAuth
// @Param        from  query  string  false  "From (RFC3339)"
// @Param        to    query  string  false  "To (RFC3339)"
// @Router       /api/appointments [get]
func (s *Server) ListAppointments(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	now := s.clock.Now()
	from := now.Add(-24 * time.Hour)
	to := now.Add(30 * 24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		to = parsed
	}

	resp, err := s.appointmentSvc.List(c.Request.Context(), tenantID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Confirm Appointment
// @Tags         appointments
// @Produce      json
// @Security     BearerAuth
// @Router       /api/appointments/{id}/confirm [post]
func (s *Server) ConfirmAppointment(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.appointmentSvc.Confirm(c.Request.Context(), tenantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Cancel Appointment
// @Description  Cancel and offer the freed slot to the waitlist
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /api/appointments/{id}/cancel [post]
func (s *Server) CancelAppointment(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.appointmentSvc.Cancel(c.Request.Context(), tenantID, id, "business", req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type joinWaitlistRequest struct {
	ClientID string `json:"client_id"`
	Service  string `json:"service"`
}

// @Summary      Join Waitlist
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  appointmentdomain.WaitlistEntry
// @Router       /api/waitlist [post]
func (s *Server) JoinWaitlist(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	var req joinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, err := parseID(req.ClientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.appointmentSvc.JoinWaitlist(c.Request.Context(), tenantID, appointmentdomain.JoinWaitlistRequest{
		ClientID: clientID,
		Service:  req.Service,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Usage Report
// @Description  Current-period usage against the tier ceilings
// @Tags         usage
// @Produce      json
// @Security     BearerAuth
// @Router       /api/usage [get]
func (s *Server) UsageReport(c *gin.Context) {
	tenantID, ok := s.tenantID(c)
	if !ok {
		return
	}

	resp, err := s.usageSvc.Report(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
