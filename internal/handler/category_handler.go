package handler

import (
	"net/http"

	"trackly/internal/middleware"
	"trackly/internal/model"
	"trackly/internal/service"
	"trackly/pkg/response"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	categoryService service.CategoryService
}

func NewCategoryHandler(categoryService service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	categories := router.Group("/api/categories")
	{
		categories.GET("", middleware.RequireAuth(), h.List)
		categories.POST("/bulk-upload", middleware.RequireRole(model.RoleAdmin, model.RoleFinance), h.BulkUpload)
	}
}

// List returns the full category reference table sorted by name
func (h *CategoryHandler) List(c *gin.Context) {
	cats, err := h.categoryService.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cats))
}

// BulkUpload replaces GL code mappings from a CSV with name and gl_code columns
func (h *CategoryHandler) BulkUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing file upload"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Could not open uploaded file"))
		return
	}
	defer file.Close()

	count, err := h.categoryService.BulkUploadCategories(c.Request.Context(), file)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{"created_or_updated": count}))
}
