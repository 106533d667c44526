package handlers

import (
	"net/http"
	"strings"

	"github.com/MalcolmMc23/Alumo/internal/providers/llm"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

type CompletionHandler struct {
	svc services.ChatService
}

func NewCompletionHandler(svc services.ChatService) *CompletionHandler {
	return &CompletionHandler{svc: svc}
}

type CompletionRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

func (h *CompletionHandler) Complete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CompletionHandler.Complete", "Message is required", err))
		return
	}

	reply, err := h.svc.Reply(c.Request.Context(), user, req.Message, req.History)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

type AnalyzeResumeRequest struct {
	Content string `json:"content"`
}

// AnalyzeResume reviews the posted text, or the stored resume when none is posted.
func (h *CompletionHandler) AnalyzeResume(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req AnalyzeResumeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "CompletionHandler.AnalyzeResume", "invalid request body", err))
			return
		}
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		content = user.ResumeContext()
	}
	if content == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CompletionHandler.AnalyzeResume", "No resume content provided", nil))
		return
	}

	analysis, err := h.svc.AnalyzeResume(c.Request.Context(), content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}
