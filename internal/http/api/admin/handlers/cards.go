package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/BizCardCloud/internal/http/api"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/router-for-me/BizCardCloud/internal/store"
)

// CardHandler exposes the generated card log.
type CardHandler struct {
	store store.Storage
}

// NewCardHandler constructs a card handler.
func NewCardHandler(s store.Storage) *CardHandler {
	return &CardHandler{store: s}
}

// List returns generated cards newest first, optionally for one ?employee_id=.
func (h *CardHandler) List(c *gin.Context) {
	limit, offset := api.Page(c)
	filter := store.Filter{
		EmployeeID: strings.TrimSpace(c.Query("employee_id")),
		Limit:      limit,
		Offset:     offset,
	}
	cards, errList := store.ListAs[*models.GeneratedCard](c.Request.Context(), h.store, store.KindGeneratedCard, api.TenantID(c), filter)
	if errList != nil {
		api.WriteError(c, errList)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}
