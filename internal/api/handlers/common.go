package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MalcolmMc23/Alumo/internal/api/middleware"
	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Error   string     `json:"error"`
	Code    utils.Code `json:"code"`
	Message string     `json:"message,omitempty"`
}

// writeError is the single place errors become responses. AppError messages
// are client-safe; the wrapped cause only reaches the request log.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		c.JSON(status, APIError{Error: ae.Message, Code: ae.Code})
		return
	}

	c.JSON(status, APIError{
		Error: http.StatusText(status),
		Code:  utils.CodeInternal,
	})
}

func genericMessage(err error) string {
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return http.StatusText(http.StatusInternalServerError)
}

func requireUser(c *gin.Context) (*models.User, bool) {
	if u, ok := middleware.CurrentUser(c); ok {
		return u, true
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "Unauthorized", nil))
	return nil, false
}

// readUpload reads at most max bytes of the multipart field "file".
// tooLarge is true when the part is bigger than max.
func readUpload(c *gin.Context, max int64) (fh *multipart.FileHeader, data []byte, tooLarge bool, err error) {
	fh, err = c.FormFile("file")
	if err != nil {
		return nil, nil, false, err
	}
	if fh.Size > max {
		return fh, nil, true, nil
	}
	f, err := fh.Open()
	if err != nil {
		return fh, nil, false, err
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return fh, nil, false, err
	}
	if int64(len(data)) > max {
		return fh, nil, true, nil
	}
	return fh, data, false, nil
}
