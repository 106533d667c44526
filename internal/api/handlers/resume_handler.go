package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/MalcolmMc23/Alumo/internal/resume"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	unsupportedResumeMessage = "Please upload a resume in PDF, DOC, DOCX, TXT, or HTML format."
	emptyResumeMessage       = "The file appears to be empty or in a format that cannot be properly read. Please try a different file or format."
	resumeFailureMessage     = "An unexpected error occurred while processing your resume. Please try again with a different file."
)

// ResumeHandler extracts resume text without saving it; any visitor may call it.
type ResumeHandler struct{}

func NewResumeHandler() *ResumeHandler {
	return &ResumeHandler{}
}

func (h *ResumeHandler) Extract(c *gin.Context) {
	const op = "ResumeHandler.Extract"

	fh, data, ok := readResumeUpload(c)
	if !ok {
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	text, err := services.ExtractResume(op, fh.Filename, mimeType, data)
	if err != nil {
		writeResumeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"filename":   fh.Filename,
		"fileType":   resume.NormalizeMime(mimeType),
		"resumeText": text,
	})
}

// readResumeUpload writes the error response itself when it returns false.
func readResumeUpload(c *gin.Context) (fh *multipart.FileHeader, data []byte, ok bool) {
	h, data, tooLarge, err := readUpload(c, resume.MaxFileSize)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return nil, nil, false
	}
	if tooLarge {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File size exceeds 5MB limit"})
		return nil, nil, false
	}
	if !resume.IsSupported(h.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "Unsupported file type",
			"message":          unsupportedResumeMessage,
			"supportedFormats": resume.SupportedFormats,
		})
		return nil, nil, false
	}
	return h, data, true
}

// writeResumeError keeps the response bodies the upload form already understands.
func writeResumeError(c *gin.Context, err error) {
	if utils.IsCode(err, utils.CodeNotFound) || utils.IsCode(err, utils.CodeUnauthorized) {
		writeError(c, err)
		return
	}

	_ = c.Error(err)
	switch {
	case errors.Is(err, resume.ErrUnsupportedType):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "Unsupported file type",
			"message":          unsupportedResumeMessage,
			"supportedFormats": resume.SupportedFormats,
		})
	case errors.Is(err, resume.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File size exceeds 5MB limit"})
	case utils.IsCode(err, utils.CodeUnprocessable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "Could not extract meaningful content from the file",
			"message": emptyResumeMessage,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process resume",
			"message": resumeFailureMessage,
		})
	}
}
