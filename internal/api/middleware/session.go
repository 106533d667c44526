package middleware

import (
	"net/http"
	"strings"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID = "user_id"
	CtxUser   = "user"
)

type apiError struct {
	Error string     `json:"error"`
	Code  utils.Code `json:"code"`
}

// SessionAuth accepts the session token from the Authorization header or the
// session cookie, then loads the user so handlers never query it again.
func SessionAuth(auth services.AuthService, users services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Error: "Unauthorized", Code: utils.CodeUnauthorized})
			return
		}

		claims, err := auth.ParseSession(raw)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{Error: "Unauthorized", Code: utils.CodeUnauthorized})
			return
		}

		u, err := users.Resolve(c.Request.Context(), claims.Subject, claims.Email)
		if err != nil {
			_ = c.Error(err)
			status := utils.HTTPStatus(err)
			body := apiError{Error: "Internal Server Error", Code: utils.CodeInternal}
			switch status {
			case http.StatusNotFound:
				body = apiError{Error: "User not found", Code: utils.CodeNotFound}
			case http.StatusUnauthorized:
				body = apiError{Error: "Unauthorized", Code: utils.CodeUnauthorized}
			}
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Set(CtxUser, u)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); tok != "" {
			return tok
		}
	}
	if v, err := c.Cookie(services.SessionCookie); err == nil {
		return v
	}
	return ""
}

// CurrentUser returns the user stored by SessionAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}
