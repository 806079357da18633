package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	shardapp "github.com/shardbase/backend/internal/application/shard"
)

// ShardHandler exposes shard operations over HTTP. The coordinator owns
// all sequencing; handlers only translate transport to application calls.
type ShardHandler struct {
	BaseHandler
	coordinator *shardapp.Coordinator
}

// NewShardHandler creates a new shard handler
func NewShardHandler(coordinator *shardapp.Coordinator) *ShardHandler {
	return &ShardHandler{coordinator: coordinator}
}

// RegisterRoutes registers shard routes
func (h *ShardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	shards := rg.Group("/shards")
	{
		shards.POST("", h.Create)
		shards.GET("", h.List)
		shards.GET("/:id", h.Get)
		shards.PUT("/:id", h.Update)
		shards.PATCH("/:id", h.Patch)
		shards.DELETE("/:id", h.Delete)
		shards.GET("/:id/revisions", h.ListRevisions)
		shards.GET("/:id/revisions/compare", h.CompareRevisions)
		shards.POST("/:id/revert", h.Revert)
	}
}

// CreateShardRequest is the request body for creating a shard
type CreateShardRequest struct {
	TypeID         string                 `json:"type_id" binding:"required,uuid"`
	StructuredData map[string]interface{} `json:"structured_data" binding:"required"`
}

// Create handles POST /shards
func (h *ShardHandler) Create(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}

	var req CreateShardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	typeID, err := uuid.Parse(req.TypeID)
	if err != nil {
		h.BadRequest(c, "Invalid type_id")
		return
	}

	resp, err := h.coordinator.Create(c.Request.Context(), principal, principal.TenantID, typeID, req.StructuredData)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Get handles GET /shards/:id
func (h *ShardHandler) Get(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}
	includeDeleted := c.Query("include_deleted") == "true"

	resp, err := h.coordinator.Get(c.Request.Context(), principal, principal.TenantID, shardID, includeDeleted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List handles GET /shards
func (h *ShardHandler) List(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}

	filter := shardapp.ListFilter{
		IncludeDeleted: c.Query("include_deleted") == "true",
		SortBy:         c.Query("sort_by"),
		SortDir:        c.Query("sort_dir"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = pageSize
	}
	if raw := c.Query("type_id"); raw != "" {
		typeID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid type_id filter")
			return
		}
		filter.TypeID = &typeID
	}

	page, err := h.coordinator.List(c.Request.Context(), principal, principal.TenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// WriteShardRequest is the request body for replacing or merging shard data
type WriteShardRequest struct {
	ExpectedVersion int                    `json:"expected_version" binding:"required,min=1"`
	StructuredData  map[string]interface{} `json:"structured_data" binding:"required"`
}

// Update handles PUT /shards/:id
func (h *ShardHandler) Update(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}

	var req WriteShardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Update(c.Request.Context(), principal, principal.TenantID, shardID, req.ExpectedVersion, req.StructuredData)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Patch handles PATCH /shards/:id
func (h *ShardHandler) Patch(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}

	var req WriteShardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Patch(c.Request.Context(), principal, principal.TenantID, shardID, req.ExpectedVersion, req.StructuredData)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete handles DELETE /shards/:id?expected_version=N
func (h *ShardHandler) Delete(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}
	expectedVersion, err := strconv.Atoi(c.Query("expected_version"))
	if err != nil || expectedVersion < 1 {
		h.BadRequest(c, "expected_version query parameter is required")
		return
	}

	if err := h.coordinator.Delete(c.Request.Context(), principal, principal.TenantID, shardID, expectedVersion); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListRevisions handles GET /shards/:id/revisions
func (h *ShardHandler) ListRevisions(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}

	revs, err := h.coordinator.ListRevisions(c.Request.Context(), principal, principal.TenantID, shardID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, revs)
}

// CompareRevisions handles GET /shards/:id/revisions/compare?from=N&to=M
func (h *ShardHandler) CompareRevisions(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}
	from, err := strconv.Atoi(c.Query("from"))
	if err != nil || from < 1 {
		h.BadRequest(c, "from query parameter is required")
		return
	}
	to, err := strconv.Atoi(c.Query("to"))
	if err != nil || to < 1 {
		h.BadRequest(c, "to query parameter is required")
		return
	}

	diff, err := h.coordinator.CompareRevisions(c.Request.Context(), principal, principal.TenantID, shardID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, diff)
}

// RevertShardRequest is the request body for reverting a shard
type RevertShardRequest struct {
	TargetRevision int `json:"target_revision" binding:"required,min=1"`
}

// Revert handles POST /shards/:id/revert
func (h *ShardHandler) Revert(c *gin.Context) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return
	}
	shardID, ok := h.shardID(c)
	if !ok {
		return
	}

	var req RevertShardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.coordinator.Revert(c.Request.Context(), principal, principal.TenantID, shardID, req.TargetRevision)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// shardID parses the :id path parameter
func (h *ShardHandler) shardID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid shard ID")
		return uuid.Nil, false
	}
	return id, true
}
