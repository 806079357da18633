package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessapp "github.com/shardbase/backend/internal/application/access"
	"github.com/shardbase/backend/internal/domain/access"
	"github.com/shardbase/backend/internal/domain/shared"
	"github.com/shardbase/backend/internal/interfaces/http/dto"
)

// BindingHandler exposes ACL binding administration. Only admins may
// change bindings; shard-level access control itself lives in the ACL
// service that every shard operation consults.
type BindingHandler struct {
	BaseHandler
	service *accessapp.Service
}

// NewBindingHandler creates a new binding handler
func NewBindingHandler(service *accessapp.Service) *BindingHandler {
	return &BindingHandler{service: service}
}

// RegisterRoutes registers binding routes
func (h *BindingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	acl := rg.Group("/acl")
	{
		acl.POST("/bindings", h.Grant)
		acl.DELETE("/bindings/:id", h.Revoke)
		acl.POST("/principals/:id/evict", h.EvictPrincipal)
	}
}

// GrantRequest is the request body for creating a binding
type GrantRequest struct {
	PrincipalID *string `json:"principal_id" binding:"omitempty,uuid"`
	Role        string  `json:"role"`
	ShardID     *string `json:"shard_id" binding:"omitempty,uuid"`
	Action      string  `json:"action"`
	Effect      string  `json:"effect" binding:"required,oneof=allow deny"`
}

// Grant handles POST /acl/bindings
func (h *BindingHandler) Grant(c *gin.Context) {
	principal, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if (req.PrincipalID == nil) == (req.Role == "") {
		h.BadRequest(c, "Exactly one of principal_id or role must be set")
		return
	}

	var action access.Action
	if req.Action != "" {
		parsed, err := access.ParseAction(req.Action)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		action = parsed
	}

	var shardID *uuid.UUID
	if req.ShardID != nil {
		id, err := uuid.Parse(*req.ShardID)
		if err != nil {
			h.BadRequest(c, "Invalid shard_id")
			return
		}
		shardID = &id
	}

	var binding *access.Binding
	var err error
	if req.PrincipalID != nil {
		principalID, parseErr := uuid.Parse(*req.PrincipalID)
		if parseErr != nil {
			h.BadRequest(c, "Invalid principal_id")
			return
		}
		binding, err = access.NewPrincipalBinding(principal.TenantID, principalID, shardID, action, access.Effect(req.Effect))
	} else {
		binding, err = access.NewRoleBinding(principal.TenantID, req.Role, shardID, action, access.Effect(req.Effect))
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.service.Grant(c.Request.Context(), binding); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gin.H{"id": binding.ID})
}

// Revoke handles DELETE /acl/bindings/:id
func (h *BindingHandler) Revoke(c *gin.Context) {
	principal, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	bindingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid binding ID")
		return
	}

	binding := &access.Binding{
		BaseEntity: shared.BaseEntity{ID: bindingID},
		TenantID:   principal.TenantID,
	}
	if err := h.service.Revoke(c.Request.Context(), binding); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// EvictPrincipal handles POST /acl/principals/:id/evict. The identity
// service calls it when a principal's role set changes, since role
// membership is not visible to this subsystem's bindings.
func (h *BindingHandler) EvictPrincipal(c *gin.Context) {
	principal, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	principalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid principal ID")
		return
	}

	h.service.EvictPrincipal(c.Request.Context(), principal.TenantID, principalID)
	h.NoContent(c)
}

// requireAdmin extracts the principal and rejects non-admins
func (h *BindingHandler) requireAdmin(c *gin.Context) (access.Principal, bool) {
	principal, ok := h.getPrincipal(c)
	if !ok {
		return principal, false
	}
	if !principal.HasRole("admin") {
		h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, "Binding administration requires the admin role")
		return principal, false
	}
	return principal, true
}
