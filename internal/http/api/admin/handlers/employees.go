package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
)

// EmployeeHandler manages the tenant's card holders.
type EmployeeHandler struct {
	store store.Storage
}

// NewEmployeeHandler constructs an employee handler.
func NewEmployeeHandler(s store.Storage) *EmployeeHandler {
	return &EmployeeHandler{store: s}
}

// employeeRequest captures the editable employee fields.
type employeeRequest struct {
	Email      string `json:"email"`       // Unique per tenant, case-insensitive.
	NameEn     string `json:"name_en"`     // English name.
	NameAr     string `json:"name_ar"`     // Arabic name.
	PositionEn string `json:"position_en"` // English job title.
	PositionAr string `json:"position_ar"` // Arabic job title.
	CompanyEn  string `json:"company_en"`  // English company name.
	CompanyAr  string `json:"company_ar"`  // Arabic company name.
	Phone      string `json:"phone"`       // Office phone.
	Mobile     string `json:"mobile"`      // Mobile phone.
	Website    string `json:"website"`     // Website URL.
	Address    string `json:"address"`     // Postal address.
}

func (r employeeRequest) apply(e *models.Employee) {
	e.Email = r.Email
	e.NameEn = strings.TrimSpace(r.NameEn)
	e.NameAr = strings.TrimSpace(r.NameAr)
	e.PositionEn = strings.TrimSpace(r.PositionEn)
	e.PositionAr = strings.TrimSpace(r.PositionAr)
	e.CompanyEn = strings.TrimSpace(r.CompanyEn)
	e.CompanyAr = strings.TrimSpace(r.CompanyAr)
	e.Phone = strings.TrimSpace(r.Phone)
	e.Mobile = strings.TrimSpace(r.Mobile)
	e.Website = strings.TrimSpace(r.Website)
	e.Address = strings.TrimSpace(r.Address)
}

// Create adds an employee. The plan limit is enforced by the admin middleware.
func (h *EmployeeHandler) Create(c *gin.Context) {
	var body employeeRequest
	if !api.BindJSON(c, &body) {
		return
	}
	employee := &models.Employee{}
	body.apply(employee)
	if errCreate := h.store.Create(c.Request.Context(), api.TenantID(c), employee); errCreate != nil {
		api.WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

// List returns employees, optionally filtered by ?search= and ?email=.
func (h *EmployeeHandler) List(c *gin.Context) {
	limit, offset := api.Page(c)
	filter := store.Filter{
		Search: strings.TrimSpace(c.Query("search")),
		Email:  strings.TrimSpace(c.Query("email")),
		Limit:  limit,
		Offset: offset,
	}
	ctx := c.Request.Context()
	tenantID := api.TenantID(c)
	employees, errList := store.ListAs[*models.Employee](ctx, h.store, store.KindEmployee, tenantID, filter)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	total, errCount := h.store.Count(ctx, store.KindEmployee, tenantID)
	if errCount != nil {
		api.WriteError(c, errCount)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees, "total": total})
}

// Get fetches one employee.
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, errGet := store.GetAs[*models.Employee](c.Request.Context(), h.store, store.KindEmployee, api.TenantID(c), c.Param("id"))
	if errGet != nil {
		api.WriteError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, employee)
}

// Update replaces the editable fields of an employee.
func (h *EmployeeHandler) Update(c *gin.Context) {
	var body employeeRequest
	if !api.BindJSON(c, &body) {
		return
	}
	employee := &models.Employee{ID: c.Param("id")}
	body.apply(employee)
	if errUpdate := h.store.Update(c.Request.Context(), api.TenantID(c), employee); errUpdate != nil {
		api.WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, employee)
}

// Delete removes an employee.
func (h *EmployeeHandler) Delete(c *gin.Context) {
	if errDelete := h.store.Delete(c.Request.Context(), store.KindEmployee, api.TenantID(c), c.Param("id")); errDelete != nil {
		api.WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
