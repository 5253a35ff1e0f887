package handler

import (
	"errors"
	"net/http"

	"trackly/internal/middleware"
	"trackly/internal/service"
	"trackly/pkg/response"

	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	exportService service.ExportService
}

func NewExportHandler(exportService service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

func (h *ExportHandler) RegisterRoutes(router *gin.RouterGroup) {
	export := router.Group("/api/export", middleware.RequireAuth())
	{
		export.GET("/approved/:ownerId", h.ApprovedExpenses)
	}
}

// ApprovedExpenses returns one owner's fully approved expenses with owner
// identity on every row, ready for accounting export
func (h *ExportHandler) ApprovedExpenses(c *gin.Context) {
	ownerID := c.Param("ownerId")
	userID, _ := c.Get("userID")
	userIDStr, _ := userID.(string)
	userRole, _ := c.Get("userRole")
	userRoleStr, _ := userRole.(string)

	rows, err := h.exportService.ApprovedExpenses(c.Request.Context(), ownerID, userIDStr, userRoleStr)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrExportForbidden) {
			status = http.StatusForbidden
		}
		c.JSON(status, response.Error(status, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}
