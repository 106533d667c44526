package handlers

import (
	"io"
	"net/http"

	"github.com/MalcolmMc23/Alumo/internal/docserver"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 1 << 20

type DocumentHandler struct {
	svc services.DocumentService
}

func NewDocumentHandler(svc services.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func (h *DocumentHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": rows})
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	const op = "DocumentHandler.Upload"

	user, ok := requireUser(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "No file provided", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "Failed to read upload", err))
		return
	}
	defer f.Close()

	doc, err := h.svc.Upload(c.Request.Context(), user.ID, fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		writeError(c, err)
		return
	}
	fileURL, err := h.svc.FileURL(c.Request.Context(), doc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "File uploaded successfully",
		"fileId":   doc.ID,
		"fileName": doc.OriginalName,
		"filePath": fileURL,
	})
}

func (h *DocumentHandler) Open(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	out, err := h.svc.Open(c.Request.Context(), user, c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *DocumentHandler) Callbacks(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	rows, err := h.svc.CallbackHistory(c.Request.Context(), user.ID, c.Param("fileId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callbacks": rows})
}

// Callback always answers 200; the document server reads the error field.
func (h *DocumentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, docserver.CallbackReply{Error: 1, Message: "Invalid callback body"})
		return
	}

	reply := h.svc.HandleCallback(c.Request.Context(), c.Query("fileId"), body, c.GetHeader("Authorization"))
	c.JSON(http.StatusOK, reply)
}

func (h *DocumentHandler) TestJWT(c *gin.Context) {
	if err := h.svc.TestJWT(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": genericMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "JWT authentication verified successfully"})
}
