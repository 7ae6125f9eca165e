package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
)

// TemplateHandler manages card templates and their activation.
type TemplateHandler struct {
	store store.Storage
}

// NewTemplateHandler constructs a template handler.
func NewTemplateHandler(s store.Storage) *TemplateHandler {
	return &TemplateHandler{store: s}
}

// templateRequest captures the editable template fields.
type templateRequest struct {
	Name            string             `json:"name"`             // Display name.
	Side            string             `json:"side"`             // front or back.
	BackgroundImage string             `json:"background_image"` // Background image reference.
	Fields          models.FieldLayout `json:"fields"`           // Optional layout; defaults apply on create.
}

func (r templateRequest) toModel(id string) *models.Template {
	return &models.Template{
		ID:              id,
		Name:            r.Name,
		Side:            models.TemplateSide(strings.ToLower(strings.TrimSpace(r.Side))),
		BackgroundImage: strings.TrimSpace(r.BackgroundImage),
		Fields:          r.Fields,
	}
}

// Create adds an inactive template.
func (h *TemplateHandler) Create(c *gin.Context) {
	var body templateRequest
	if !api.BindJSON(c, &body) {
		return
	}
	tpl := body.toModel("")
	if errCreate := h.store.Create(c.Request.Context(), api.TenantID(c), tpl); errCreate != nil {
		api.WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// List returns templates, optionally filtered by ?side= and ?active=true.
func (h *TemplateHandler) List(c *gin.Context) {
	limit, offset := api.Page(c)
	filter := store.Filter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  limit,
		Offset: offset,
	}
	if rawSide := strings.TrimSpace(c.Query("side")); rawSide != "" {
		side, ok := models.ParseTemplateSide(rawSide)
		if !ok {
			api.WriteError(c, apperr.Validation("templates: list", "side must be front or back"))
			return
		}
		filter.Side = side
	}
	if active := strings.TrimSpace(c.Query("active")); active == "true" || active == "1" {
		filter.ActiveOnly = true
	}
	templates, errList := store.ListAs[*models.Template](c.Request.Context(), h.store, store.KindTemplate, api.TenantID(c), filter)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// Get fetches one template.
func (h *TemplateHandler) Get(c *gin.Context) {
	tpl, errGet := store.GetAs[*models.Template](c.Request.Context(), h.store, store.KindTemplate, api.TenantID(c), c.Param("id"))
	if errGet != nil {
		api.WriteError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// Update replaces a template's fields. Moving it to the other side deactivates it.
func (h *TemplateHandler) Update(c *gin.Context) {
	var body templateRequest
	if !api.BindJSON(c, &body) {
		return
	}
	tpl := body.toModel(c.Param("id"))
	if errUpdate := h.store.Update(c.Request.Context(), api.TenantID(c), tpl); errUpdate != nil {
		api.WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// Delete removes a template.
func (h *TemplateHandler) Delete(c *gin.Context) {
	if errDelete := h.store.Delete(c.Request.Context(), store.KindTemplate, api.TenantID(c), c.Param("id")); errDelete != nil {
		api.WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Activate makes the template the only active one for its side.
func (h *TemplateHandler) Activate(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := api.TenantID(c)
	tpl, errGet := store.GetAs[*models.Template](ctx, h.store, store.KindTemplate, tenantID, c.Param("id"))
	if errGet != nil {
		api.WriteError(c, errGet)
		return
	}
	if errActivate := h.store.ActivateTemplate(ctx, tenantID, tpl.ID, tpl.Side); errActivate != nil {
		api.WriteError(c, errActivate)
		return
	}
	tpl.IsActive = true
	c.JSON(http.StatusOK, tpl)
}
