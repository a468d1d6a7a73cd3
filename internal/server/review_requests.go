package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reviewdomain "github.com/smallbiznis/reviewboost/internal/reviewrequest/domain"
	"github.com/smallbiznis/reviewboost/pkg/db/pagination"
)

type reviewRequestDetail struct {
	reviewdomain.ReviewRequest
	Attempts []reviewdomain.DispatchAttempt `json:"attempts"`
}

func (s *Server) GetReviewRequest(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	req, err := s.requestSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	attempts, err := s.requestSvc.ListAttempts(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if attempts == nil {
		attempts = []reviewdomain.DispatchAttempt{}
	}

	c.JSON(http.StatusOK, gin.H{"data": reviewRequestDetail{ReviewRequest: req, Attempts: attempts}})
}

func (s *Server) ListBusinessReviewRequests(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	business, err := s.businessSvc.Find(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.requestSvc.ListByBusiness(ctx, reviewdomain.ListRequest{
		BusinessID: business.ID,
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.ReviewRequests,
		"page_info": resp.PageInfo,
	})
}
