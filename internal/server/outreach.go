package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	outreachdomain "github.com/smallbiznis/reviewboost/internal/outreach/domain"
)

type contactRequest struct {
	Contact string `json:"contact"`
	Carrier string `json:"carrier"`
}

type generateRequest struct {
	BusinessID string           `json:"business_id"`
	PlaceURL   string           `json:"place_url"`
	Contacts   []contactRequest `json:"contacts"`
	Tone       string           `json:"tone"`
}

func (s *Server) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	contacts := make([]outreachdomain.ContactInput, 0, len(req.Contacts))
	for _, contact := range req.Contacts {
		contacts = append(contacts, outreachdomain.ContactInput{
			Contact: strings.TrimSpace(contact.Contact),
			Carrier: strings.TrimSpace(contact.Carrier),
		})
	}

	resp, err := s.outreachSvc.Generate(c.Request.Context(), outreachdomain.GenerateRequest{
		BusinessRef: strings.TrimSpace(req.BusinessID),
		PlaceQuery:  strings.TrimSpace(req.PlaceURL),
		Contacts:    contacts,
		Tone:        strings.TrimSpace(req.Tone),
		BaseURL:     s.requestBaseURL(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type sendRequest struct {
	Items   []outreachdomain.SendItem `json:"items"`
	Carrier string                    `json:"carrier"`
}

func (s *Server) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.outreachSvc.Send(c.Request.Context(), outreachdomain.SendRequest{
		Items:   req.Items,
		Carrier: strings.TrimSpace(req.Carrier),
		BaseURL: s.requestBaseURL(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type regenerateRequest struct {
	NewCode bool   `json:"new_code"`
	Tone    string `json:"tone"`
}

func (s *Server) Regenerate(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req regenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.outreachSvc.Regenerate(c.Request.Context(), id, outreachdomain.RegenerateRequest{
		NewCode: req.NewCode,
		Tone:    strings.TrimSpace(req.Tone),
		BaseURL: s.requestBaseURL(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteReviewRequest(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.outreachSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListBusinesses(c *gin.Context) {
	businesses, err := s.outreachSvc.ListBusinesses(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": businesses})
}

func (s *Server) ResolvePlace(c *gin.Context) {
	input := strings.TrimSpace(c.Query("url"))
	if input == "" {
		AbortWithError(c, newValidationError("url", "required", "url is required"))
		return
	}

	place, err := s.outreachSvc.ResolvePlace(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": place})
}

func (s *Server) GetDashboard(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("business_id"))
	if ref == "" {
		AbortWithError(c, newValidationError("business_id", "required", "business_id is required"))
		return
	}

	resp, err := s.outreachSvc.Dashboard(c.Request.Context(), ref)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCarriers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.outreachSvc.Carriers()})
}

func (s *Server) DiagnoseDispatch(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.outreachSvc.Diagnose(c.Request.Context())})
}

func (s *Server) SendTestMessage(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.outreachSvc.SendTest(c.Request.Context(), outreachdomain.SendTestRequest{
		Contact: strings.TrimSpace(req.Contact),
		Carrier: strings.TrimSpace(req.Carrier),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
