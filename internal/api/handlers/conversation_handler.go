package handlers

import (
	"net/http"
	"strconv"

	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type MessagesRequest struct {
	Messages []services.MessageInput `json:"messages"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Create", "Invalid messages format", err))
		return
	}

	conv, err := h.svc.Create(c.Request.Context(), user.ID, req.Messages)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	page, err := h.svc.List(c.Request.Context(), user.ID, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	loadAll, _ := strconv.ParseBool(c.Query("loadAll"))
	conv, err := h.svc.Get(c.Request.Context(), user.ID, c.Param("id"), queryInt(c, "page"), queryInt(c, "limit"), loadAll)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Append(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Append", "Invalid messages format", err))
		return
	}

	conv, err := h.svc.Append(c.Request.Context(), user.ID, c.Param("id"), req.Messages)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// queryInt returns 0 for missing or malformed values; services apply defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
