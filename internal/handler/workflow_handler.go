package handler

import (
	"errors"
	"net/http"

	"trackly/internal/middleware"
	"trackly/internal/service"
	"trackly/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RejectRequestDTO struct {
	Reason string `json:"reason"`
}

type WorkflowHandler struct {
	workflowService service.WorkflowService
}

func NewWorkflowHandler(workflowService service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService}
}

func (h *WorkflowHandler) RegisterRoutes(router *gin.RouterGroup) {
	expenses := router.Group("/api/expenses", middleware.RequireAuth())
	{
		expenses.POST("/:id/submit", h.Submit)
		expenses.POST("/:id/approve", h.Approve)
		expenses.POST("/:id/reject", h.Reject)
	}

	reports := router.Group("/api/reports", middleware.RequireAuth())
	{
		reports.GET("/pending", h.PendingReports)
		reports.GET("/approved", h.ApprovedReports)
		reports.POST("/:ownerId/approve", h.ApproveAll)
		reports.POST("/:ownerId/reject", h.RejectAll)
	}
}

// workflowErrStatus maps workflow sentinel errors onto HTTP status codes.
// Unrecognized errors read as a plain bad request.
func workflowErrStatus(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, service.ErrNotAuthorizedApprover):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoApproverConfigured),
		errors.Is(err, service.ErrNothingToApprove),
		errors.Is(err, service.ErrNothingToReject):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCyclicHierarchy):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Submit moves a draft into the approval workflow
func (h *WorkflowHandler) Submit(c *gin.Context) {
	id := c.Param("id")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	result, err := h.workflowService.Submit(c.Request.Context(), id, userIDStr)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Approve records the current approver's decision on a single expense
func (h *WorkflowHandler) Approve(c *gin.Context) {
	id := c.Param("id")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	result, err := h.workflowService.Approve(c.Request.Context(), id, userIDStr)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Reject finalizes a single expense as rejected
func (h *WorkflowHandler) Reject(c *gin.Context) {
	id := c.Param("id")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	var req RejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — reason is optional
		req.Reason = ""
	}

	result, err := h.workflowService.Reject(c.Request.Context(), id, userIDStr, req.Reason)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// PendingReports groups the caller's pending queue by expense owner
func (h *WorkflowHandler) PendingReports(c *gin.Context) {
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	reports, err := h.workflowService.PendingReports(c.Request.Context(), userIDStr)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reports))
}

// ApprovedReports groups all fully approved expenses by owner
func (h *WorkflowHandler) ApprovedReports(c *gin.Context) {
	reports, err := h.workflowService.ApprovedReports(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, reports))
}

// ApproveAll finalizes every pending expense of one owner routed to the caller
func (h *WorkflowHandler) ApproveAll(c *gin.Context) {
	ownerID := c.Param("ownerId")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	results, err := h.workflowService.ApproveAllForOwner(c.Request.Context(), ownerID, userIDStr)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, results))
}

// RejectAll rejects every pending expense of one owner routed to the caller
func (h *WorkflowHandler) RejectAll(c *gin.Context) {
	ownerID := c.Param("ownerId")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)

	var req RejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	results, err := h.workflowService.RejectAllForOwner(c.Request.Context(), ownerID, userIDStr, req.Reason)
	if err != nil {
		status := workflowErrStatus(err)
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, results))
}
