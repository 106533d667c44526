package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const stateCookie = "alumo_oauth_state"

type AuthHandler struct {
	auth         services.AuthService
	secureCookie bool
}

func NewAuthHandler(auth services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie}
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/", "", h.secureCookie, true)
	c.Redirect(http.StatusFound, h.auth.LoginURL(state))
}

func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	const op = "AuthHandler.GoogleCallback"

	want, err := c.Cookie(stateCookie)
	got := c.Query("state")
	if err != nil || got == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		writeError(c, utils.E(utils.CodeUnauthorized, op, "invalid sign-in state", err))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.secureCookie, true)

	if e := c.Query("error"); e != "" {
		writeError(c, utils.E(utils.CodeUnauthorized, op, "sign-in was cancelled", nil))
		return
	}

	user, token, err := h.auth.CompleteLogin(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(services.SessionCookie, token, int(h.auth.SessionTTL().Seconds()), "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  services.BuildProfileView(user),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(services.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
