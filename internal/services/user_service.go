package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/cache"
	"github.com/MalcolmMc23/Alumo/internal/models"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	"github.com/MalcolmMc23/Alumo/internal/resume"
	"github.com/MalcolmMc23/Alumo/internal/storage"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	fallbackName       = "Anonymous User"
	fallbackJoined     = "Recent member"
	fallbackUniversity = "University Not Set"
	fallbackMajor      = "Major Not Set"
	fallbackYear       = "Year Not Set"
	fallbackBio        = "This user hasn't added a bio yet."
)

// Identity is what the sign-in provider tells us about a user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// ProfileView is the public profile returned by GET /api/user.
type ProfileView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Image           string   `json:"image"`
	JoinedDate      string   `json:"joinedDate"`
	University      string   `json:"university"`
	Major           string   `json:"major"`
	GraduationYear  any      `json:"graduationYear"`
	Bio             string   `json:"bio"`
	Location        string   `json:"location"`
	Skills          []string `json:"skills"`
	LinkedInProfile string   `json:"linkedInProfile"`
	EducationLevel  string   `json:"educationLevel"`
	CareerGoals     string   `json:"careerGoals"`
	HasResume       bool     `json:"hasResume"`
	ResumeFileName  string   `json:"resumeFileName"`
	ResumeText      string   `json:"resumeText"`
}

// FlexibleYear accepts a JSON number or a numeric string. Null and "" leave it unset.
type FlexibleYear struct {
	Value int
	Set   bool
}

func (y *FlexibleYear) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*y = FlexibleYear{}
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*y = FlexibleYear{}
			return nil
		}
	} else {
		s = string(b)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("graduationYear must be a year, got %q", s)
	}
	*y = FlexibleYear{Value: n, Set: true}
	return nil
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	EducationLevel  *string      `json:"educationLevel"`
	Major           *string      `json:"major"`
	GraduationYear  FlexibleYear `json:"graduationYear"`
	CareerGoals     *string      `json:"careerGoals"`
	University      *string      `json:"university"`
	Location        *string      `json:"location"`
	Skills          *[]string    `json:"skills"`
	LinkedInProfile *string      `json:"linkedInProfile"`
}

type ResumeUpload struct {
	FileName   string `json:"filename"`
	FileType   string `json:"fileType"`
	ResumeText string `json:"resumeText"`
}

type UserService interface {
	UpsertFromIdentity(ctx context.Context, id Identity) (*models.User, error)
	// Resolve loads the session user by id, falling back to email.
	Resolve(ctx context.Context, userID, email string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error)
	SaveResume(ctx context.Context, userID, fileName, mimeType string, data []byte) (*ResumeUpload, error)
}

type userService struct {
	users    pgrepo.UserRepository
	cache    cache.Cache
	store    storage.Store
	cacheTTL time.Duration
	log      *logrus.Logger
}

func NewUserService(users pgrepo.UserRepository, c cache.Cache, store storage.Store, cacheTTL time.Duration, l *logrus.Logger) UserService {
	return &userService{users: users, cache: c, store: store, cacheTTL: cacheTTL, log: l}
}

func (s *userService) UpsertFromIdentity(ctx context.Context, id Identity) (*models.User, error) {
	const op = "UserService.UpsertFromIdentity"

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email is required", nil)
	}

	u, err := s.findIdentity(ctx, id.Subject, email)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up user", err)
	}

	if u == nil {
		u = &models.User{
			ID:    uuid.NewString(),
			Email: email,
			Name:  id.Name,
			Image: id.Picture,
		}
		if id.Subject != "" {
			sub := id.Subject
			u.GoogleSub = &sub
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
		}
		return u, nil
	}

	fields := map[string]any{}
	if id.Subject != "" && (u.GoogleSub == nil || *u.GoogleSub != id.Subject) {
		fields["google_sub"] = id.Subject
	}
	if u.Email != email {
		fields["email"] = email
	}
	if id.Name != "" && u.Name != id.Name {
		fields["name"] = id.Name
	}
	if id.Picture != "" && u.Image != id.Picture {
		fields["image"] = id.Picture
	}
	if len(fields) > 0 {
		if err := s.users.UpdateFields(ctx, u.ID, fields); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
		}
		s.invalidate(ctx, u.ID)
		if u, err = s.users.GetByID(ctx, u.ID); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to reload user", err)
		}
	}
	return u, nil
}

func (s *userService) findIdentity(ctx context.Context, subject, email string) (*models.User, error) {
	if subject != "" {
		u, err := s.users.GetByGoogleSub(ctx, subject)
		if err == nil || !errors.Is(err, utils.ErrNotFound) {
			return u, err
		}
	}
	return s.users.GetByEmail(ctx, email)
}

func (s *userService) Resolve(ctx context.Context, userID, email string) (*models.User, error) {
	const op = "UserService.Resolve"

	if userID == "" && email == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	var (
		u   *models.User
		err = utils.ErrNotFound
	)
	if userID != "" {
		u, err = s.users.GetByID(ctx, userID)
	}
	if errors.Is(err, utils.ErrNotFound) && email != "" {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(email))
	}
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	return u, nil
}

func (s *userService) Profile(ctx context.Context, userID string) (*ProfileView, error) {
	const op = "UserService.Profile"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	key := cache.UserProfileKey(userID)
	var cached ProfileView
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
	}
	if hit {
		return &cached, nil
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to fetch user profile", err)
	}

	view := BuildProfileView(u)
	if err := s.cache.SetJSON(ctx, key, view, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("profile cache write failed")
	}
	return view, nil
}

// BuildProfileView applies the display fallbacks for unset fields.
func BuildProfileView(u *models.User) *ProfileView {
	v := &ProfileView{
		ID:              u.ID,
		Name:            orDefault(u.Name, fallbackName),
		Email:           u.Email,
		Image:           u.Image,
		JoinedDate:      fallbackJoined,
		University:      orDefault(u.University, fallbackUniversity),
		Major:           orDefault(u.Major, fallbackMajor),
		GraduationYear:  fallbackYear,
		Bio:             fallbackBio,
		Location:        u.Location,
		Skills:          []string(u.Skills),
		LinkedInProfile: u.LinkedInProfile,
		EducationLevel:  u.EducationLevel,
		CareerGoals:     u.CareerGoals,
		HasResume:       u.HasResume,
		ResumeFileName:  u.ResumeFileName,
		ResumeText:      u.ResumeText,
	}
	if !u.CreatedAt.IsZero() {
		v.JoinedDate = u.CreatedAt.UTC().Format("January 2006")
	}
	if u.GraduationYear != nil {
		v.GraduationYear = *u.GraduationYear
	}
	if v.Skills == nil {
		v.Skills = []string{}
	}
	return v
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	const op = "UserService.UpdateProfile"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	fields := map[string]any{}
	setString := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	setString("education_level", in.EducationLevel)
	setString("major", in.Major)
	setString("career_goals", in.CareerGoals)
	setString("university", in.University)
	setString("location", in.Location)
	setString("linkedin_profile", in.LinkedInProfile)

	if in.GraduationYear.Set {
		if in.GraduationYear.Value < 1900 || in.GraduationYear.Value > 2200 {
			return nil, utils.E(utils.CodeInvalidArgument, op, "graduationYear is out of range", nil)
		}
		fields["graduation_year"] = in.GraduationYear.Value
	}
	if in.Skills != nil {
		fields["skills"] = pq.StringArray(cleanSkills(*in.Skills))
	}

	if len(fields) > 0 {
		err := s.users.UpdateFields(ctx, userID, fields)
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
		}
		if err != nil {
			return nil, utils.E(utils.CodeInternal, op, "Failed to update user profile", err)
		}
		s.invalidate(ctx, userID)
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to update user profile", err)
	}
	return u, nil
}

func cleanSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(s)]; dup {
			continue
		}
		seen[strings.ToLower(s)] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ExtractResume runs the extractor and maps its failures to client errors.
func ExtractResume(op, fileName, mimeType string, data []byte) (string, error) {
	text, err := resume.Extract(fileName, mimeType, data)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, resume.ErrUnsupportedType):
		return "", utils.E(utils.CodeInvalidArgument, op, "Unsupported file type", err)
	case errors.Is(err, resume.ErrTooLarge):
		return "", utils.E(utils.CodeInvalidArgument, op, "File size exceeds 5MB limit", err)
	case errors.Is(err, resume.ErrTooShort):
		return "", utils.E(utils.CodeUnprocessable, op, "Could not extract meaningful content from the file", err)
	default:
		return "", utils.E(utils.CodeInternal, op, "Failed to process resume", err)
	}
}

func (s *userService) SaveResume(ctx context.Context, userID, fileName, mimeType string, data []byte) (*ResumeUpload, error) {
	const op = "UserService.SaveResume"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}

	text, err := ExtractResume(op, fileName, mimeType, data)
	if err != nil {
		return nil, err
	}

	fileType := resume.NormalizeMime(mimeType)
	fields := map[string]any{
		"has_resume":       true,
		"resume_text":      text,
		"resume_file_name": fileName,
		"resume_file_type": fileType,
	}

	// the original file is kept for later download; losing it does not lose the text
	key := "resumes/" + userID + "/" + uuid.NewString() + strings.ToLower(path.Ext(fileName))
	if _, err := s.store.Put(ctx, key, fileType, bytes.NewReader(data)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("resume blob not stored")
	} else {
		fields["resume_file_path"] = key
	}

	err = s.users.UpdateFields(ctx, userID, fields)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "User not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to process resume", err)
	}
	s.invalidate(ctx, userID)

	return &ResumeUpload{FileName: fileName, FileType: fileType, ResumeText: text}, nil
}

func (s *userService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Del(ctx, cache.UserProfileKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("profile cache invalidation failed")
	}
}
