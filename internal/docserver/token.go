package docserver

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("docserver: invalid token")

// Signer issues and checks HS256 tokens with the secret shared with the document server.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SignConfig embeds the config fields as top-level claims, the layout the server expects.
func (s *Signer) SignConfig(cfg Config) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(b, &claims); err != nil {
		return "", err
	}
	return s.Sign(claims)
}

// Sign adds iat and exp to claims and signs them.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	now := s.now()
	out := jwt.MapClaims{}
	for k, v := range claims {
		out[k] = v
	}
	out["iat"] = now.Unix()
	out["exp"] = now.Add(s.ttl).Unix()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, out).SignedString(s.secret)
}

func (s *Signer) Verify(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || tok == nil || !tok.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyConfig checks a token and decodes the editor config it carries.
func (s *Signer) VerifyConfig(raw string) (*Config, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return &cfg, nil
}
