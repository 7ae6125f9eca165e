package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
	log "github.com/sirupsen/logrus"
)

// CardFrontHandler serves the employee-facing card generator of one company.
type CardFrontHandler struct {
	store store.Storage
}

// NewCardFrontHandler constructs a CardFrontHandler.
func NewCardFrontHandler(s store.Storage) *CardFrontHandler {
	return &CardFrontHandler{store: s}
}

// LookupEmployee finds an employee by ?email= within the company.
func (h *CardFrontHandler) LookupEmployee(c *gin.Context) {
	const op = "cards: lookup employee"
	email := models.NormalizeEmail(c.Query("email"))
	if email == "" {
		api.WriteError(c, apperr.Validation(op, "email is required"))
		return
	}
	employees, errList := store.ListAs[*models.Employee](c.Request.Context(), h.store, store.KindEmployee, api.TenantID(c), store.Filter{Email: email, Limit: 1})
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	if len(employees) == 0 {
		api.WriteError(c, apperr.NotFound(apperr.CodeEmployeeNotFound, op, "no employee with this email"))
		return
	}
	c.JSON(http.StatusOK, employees[0])
}

// ActiveTemplates returns the active front and back templates; either may be null.
func (h *CardFrontHandler) ActiveTemplates(c *gin.Context) {
	templates, errList := store.ListAs[*models.Template](c.Request.Context(), h.store, store.KindTemplate, api.TenantID(c), store.Filter{ActiveOnly: true})
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	var front, back *models.Template
	for _, tpl := range templates {
		switch tpl.Side {
		case models.SideFront:
			if front == nil {
				front = tpl
			}
		case models.SideBack:
			if back == nil {
				back = tpl
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"front": front, "back": back})
}

// recordCardRequest describes a rendered card.
type recordCardRequest struct {
	EmployeeID      string `json:"employee_id"`       // Card holder.
	FrontTemplateID string `json:"front_template_id"` // Template used for the front.
	BackTemplateID  string `json:"back_template_id"`  // Template used for the back.
	FrontFile       string `json:"front_file"`        // Rendered front reference.
	BackFile        string `json:"back_file"`         // Rendered back reference.
	PDFFile         string `json:"pdf_file"`          // Optional PDF reference.
}

// RecordCard appends to the generated card log after the client rendered a card.
func (h *CardFrontHandler) RecordCard(c *gin.Context) {
	var body recordCardRequest
	if !api.BindJSON(c, &body) {
		return
	}
	ctx := c.Request.Context()
	tenantID := api.TenantID(c)
	employeeID := strings.TrimSpace(body.EmployeeID)
	if _, errGet := h.store.Get(ctx, store.KindEmployee, tenantID, employeeID); errGet != nil {
		api.WriteError(c, errGet)
		return
	}
	frontID := strings.TrimSpace(body.FrontTemplateID)
	backID := strings.TrimSpace(body.BackTemplateID)
	for side, id := range map[models.TemplateSide]string{models.SideFront: frontID, models.SideBack: backID} {
		if errTemplate := h.checkTemplate(c, tenantID, id, side); errTemplate != nil {
			api.WriteError(c, errTemplate)
			return
		}
	}
	entry := &models.GeneratedCard{
		EmployeeID:      employeeID,
		FrontTemplateID: frontID,
		BackTemplateID:  backID,
		FrontFile:       strings.TrimSpace(body.FrontFile),
		BackFile:        strings.TrimSpace(body.BackFile),
		PDFFile:         strings.TrimSpace(body.PDFFile),
	}
	if errRecord := h.store.RecordGeneratedCard(ctx, tenantID, entry); errRecord != nil {
		api.WriteError(c, errRecord)
		return
	}
	log.WithFields(log.Fields{"tenant_id": tenantID, "employee_id": employeeID}).Debug("cards: generated card recorded")
	c.JSON(http.StatusCreated, entry)
}

// checkTemplate verifies that a referenced template belongs to the company and side.
// An empty id means the side was not rendered.
func (h *CardFrontHandler) checkTemplate(c *gin.Context, tenantID, id string, side models.TemplateSide) error {
	if id == "" {
		return nil
	}
	tpl, errGet := store.GetAs[*models.Template](c.Request.Context(), h.store, store.KindTemplate, tenantID, id)
	if errGet != nil {
		return errGet
	}
	if tpl.Side != side {
		return apperr.Validation("cards: record", "template %q is not a %s template", id, side)
	}
	return nil
}
