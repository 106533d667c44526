package handlers

import (
	"net/http"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/services"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	svc services.UserService
}

func NewUserHandler(svc services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Me(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	view, err := h.svc.Profile(c.Request.Context(), user.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type profileUserResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	University      string   `json:"university"`
	Major           string   `json:"major"`
	GraduationYear  *int     `json:"graduationYear"`
	Location        string   `json:"location"`
	Skills          []string `json:"skills"`
	LinkedInProfile string   `json:"linkedInProfile"`
	EducationLevel  string   `json:"educationLevel"`
	CareerGoals     string   `json:"careerGoals"`
	HasResume       bool     `json:"hasResume"`
}

func toProfileUser(u *models.User) profileUserResponse {
	skills := []string(u.Skills)
	if skills == nil {
		skills = []string{}
	}
	return profileUserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		University:      u.University,
		Major:           u.Major,
		GraduationYear:  u.GraduationYear,
		Location:        u.Location,
		Skills:          skills,
		LinkedInProfile: u.LinkedInProfile,
		EducationLevel:  u.EducationLevel,
		CareerGoals:     u.CareerGoals,
		HasResume:       u.HasResume,
	}
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "UserHandler.UpdateProfile", "invalid request body", err))
		return
	}

	updated, err := h.svc.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    toProfileUser(updated),
	})
}

func (h *UserHandler) UploadResume(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	fh, data, ok := readResumeUpload(c)
	if !ok {
		return
	}

	out, err := h.svc.SaveResume(c.Request.Context(), user.ID, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		writeResumeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"filename":   out.FileName,
		"fileType":   out.FileType,
		"resumeText": out.ResumeText,
	})
}
