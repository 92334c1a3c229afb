package management

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"membersync/internal/logger"
	"membersync/pkg/errors"
	"membersync/pkg/rules"
)

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.InfowCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
		errors.ErrValidation.WithCause(err).WithDetail("message", err.Error()),
	))
}

// RegisterRoutes mounts the API on router. Middleware in mw applies to the
// store-scoped routes only.
func (h *Handler) RegisterRoutes(router gin.IRouter, mw ...gin.HandlerFunc) {
	store := router.Group("/api/v1/stores/:store_id", mw...)
	{
		containers := store.Group("/containers")
		{
			containers.GET("", h.ListContainers)
			containers.POST("", h.CreateContainer)
			containers.GET("/:id", h.GetContainer)
			containers.PUT("/:id/rules", h.ReplaceRuleSet)
			containers.DELETE("/:id/rules", h.ConvertToManual)
			containers.GET("/:id/members", h.ListMembers)
			containers.POST("/:id/members", h.AddMembers)
			containers.POST("/:id/refresh", h.RefreshContainer)
		}

		store.POST("/refresh", h.RefreshStore)
		store.POST("/preview", h.Preview)
	}
}

// ListContainers handles GET /containers?kind=collection|segment.
func (h *Handler) ListContainers(c *gin.Context) {
	containers, err := h.Service.ListContainers(c.Request.Context(), c.Param("store_id"), c.Query("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, containers)
}

func (h *Handler) CreateContainer(c *gin.Context) {
	var req CreateContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	container, err := h.Service.CreateContainer(c.Request.Context(), c.Param("store_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, container)
}

func (h *Handler) GetContainer(c *gin.Context) {
	container, err := h.Service.GetContainer(c.Request.Context(), c.Param("store_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, container)
}

// ReplaceRuleSet takes the rule set JSON ({"rules": [...], "logic": "AND"})
// as the request body.
func (h *Handler) ReplaceRuleSet(c *gin.Context) {
	var rs rules.RuleSet
	if err := c.ShouldBindJSON(&rs); err != nil {
		h.bindError(c, err)
		return
	}

	container, err := h.Service.ReplaceRuleSet(c.Request.Context(), c.Param("store_id"), c.Param("id"), rs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, container)
}

func (h *Handler) ConvertToManual(c *gin.Context) {
	container, err := h.Service.ConvertToManual(c.Request.Context(), c.Param("store_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, container)
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.Service.ListMembers(c.Request.Context(), c.Param("store_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) AddMembers(c *gin.Context) {
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	resp, err := h.Service.AddMembers(c.Request.Context(), c.Param("store_id"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RefreshContainer(c *gin.Context) {
	result, err := h.Service.RefreshContainer(c.Request.Context(), c.Param("store_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RefreshStore handles POST /refresh?kind=; without kind every kind is
// refreshed.
func (h *Handler) RefreshStore(c *gin.Context) {
	reports, err := h.Service.RefreshStore(c.Request.Context(), c.Param("store_id"), c.Query("kind"))
	if err != nil && len(reports) == 0 {
		h.HandleError(c, err)
		return
	}

	status := http.StatusOK
	for _, report := range reports {
		if report.Failed() {
			status = http.StatusMultiStatus
		}
	}
	if err != nil {
		status = http.StatusMultiStatus
		h.Logger.WarnwCtx(c.Request.Context(), "Partial store refresh", "error", err)
	}
	c.JSON(status, gin.H{"reports": reports})
}

func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	preview, err := h.Service.Preview(c.Request.Context(), c.Param("store_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}
