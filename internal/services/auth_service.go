package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	SessionCookie  = "alumo_session"
	sessionIssuer  = "alumo"
	googleUserInfo = "https://openidconnect.googleapis.com/v1/userinfo"
)

type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	SessionSecret      string
	SessionTTL         time.Duration
}

type AuthService interface {
	LoginURL(state string) string
	// CompleteLogin exchanges the OAuth code, upserts the user and issues a session token.
	CompleteLogin(ctx context.Context, code string) (*models.User, string, error)
	IssueSession(u *models.User) (string, error)
	ParseSession(raw string) (*SessionClaims, error)
	SessionTTL() time.Duration
}

type authService struct {
	oauth       *oauth2.Config
	userInfoURL string
	users       UserService
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
}

func NewAuthService(cfg AuthConfig, users UserService) AuthService {
	return &authService{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfo,
		users:       users,
		secret:      []byte(cfg.SessionSecret),
		ttl:         cfg.SessionTTL,
		now:         time.Now,
	}
}

func (s *authService) SessionTTL() time.Duration { return s.ttl }

func (s *authService) LoginURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (s *authService) CompleteLogin(ctx context.Context, code string) (*models.User, string, error) {
	const op = "AuthService.CompleteLogin"

	if code == "" {
		return nil, "", utils.E(utils.CodeInvalidArgument, op, "missing authorization code", nil)
	}
	if s.oauth.ClientID == "" {
		return nil, "", utils.E(utils.CodeUnavailable, op, "sign-in is not configured", nil)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, "", utils.E(utils.CodeUnauthorized, op, "sign-in failed", err)
	}

	p, err := s.fetchProfile(ctx, tok)
	if err != nil {
		return nil, "", utils.E(utils.CodeUnavailable, op, "failed to load account profile", err)
	}
	if !p.EmailVerified {
		return nil, "", utils.E(utils.CodeForbidden, op, "email address is not verified", nil)
	}

	u, err := s.users.UpsertFromIdentity(ctx, Identity{Subject: p.Sub, Email: p.Email, Name: p.Name, Picture: p.Picture})
	if err != nil {
		return nil, "", err
	}

	session, err := s.IssueSession(u)
	if err != nil {
		return nil, "", utils.E(utils.CodeInternal, op, "failed to issue session", err)
	}
	return u, session, nil
}

func (s *authService) fetchProfile(ctx context.Context, tok *oauth2.Token) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}
	var p googleProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return nil, err
	}
	if p.Email == "" {
		return nil, fmt.Errorf("userinfo: no email in profile")
	}
	return &p, nil
}

func (s *authService) IssueSession(u *models.User) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: u.Email,
		Name:  u.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *authService) ParseSession(raw string) (*SessionClaims, error) {
	const op = "AuthService.ParseSession"

	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || tok == nil || !tok.Valid {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid session", err)
	}
	if claims.Subject == "" && claims.Email == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "invalid session", nil)
	}
	return claims, nil
}
