package docserver

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentType(t *testing.T) {
	tests := map[string]string{
		"xlsx": TypeCell, "xls": TypeCell, "ods": TypeCell,
		"pptx": TypeSlide, "ppt": TypeSlide, "odp": TypeSlide,
		"docx": TypeWord, "odt": TypeWord, "": TypeWord, "XLSX": TypeCell,
	}
	for ext, want := range tests {
		assert.Equal(t, want, DocumentType(ext), ext)
	}
}

func TestBuildConfig(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cfg := BuildConfig(ConfigParams{
		FileID:      "f1",
		Version:     3,
		Title:       "Budget.XLSX",
		FileURL:     "http://files/uploads/f1-Budget.XLSX",
		CallbackURL: CallbackURL("https://app.example.com/", "f1"),
		UserID:      "u1",
		UserName:    "Ada",
		Now:         now,
	})

	assert.Equal(t, "xlsx", cfg.Document.FileType)
	assert.Equal(t, "f1-3-1700000000123", cfg.Document.Key)
	assert.Equal(t, TypeCell, cfg.DocumentType)
	assert.Equal(t, "https://app.example.com/api/documents/callback?fileId=f1", cfg.EditorConfig.CallbackURL)
	assert.Equal(t, "en", cfg.EditorConfig.Lang)
	assert.Equal(t, "edit", cfg.EditorConfig.Mode)
	assert.Equal(t, User{ID: "u1", Name: "Ada"}, cfg.EditorConfig.User)
}

func TestSigner_ConfigRoundTrip(t *testing.T) {
	s := NewSigner("shared-secret", time.Hour)
	cfg := BuildConfig(ConfigParams{FileID: "f1", Version: 1, Title: "cv.docx", FileURL: "http://x/cv.docx", Now: time.Now()})

	tok, err := s.SignConfig(cfg)
	require.NoError(t, err)

	got, err := s.VerifyConfig(tok)
	require.NoError(t, err)
	assert.Equal(t, cfg, *got)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	iat, err := claims.GetIssuedAt()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, exp.Sub(iat.Time))
}

func TestSigner_RejectsWrongSecretAndExpired(t *testing.T) {
	s := NewSigner("a", time.Hour)
	tok, err := s.Sign(jwt.MapClaims{"test": true})
	require.NoError(t, err)

	_, err = NewSigner("b", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	late := NewSigner("a", time.Hour)
	late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = late.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"x": 1}).SignedString([]byte("a"))
	require.NoError(t, err)
	_, err = NewSigner("a", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"status":0,"key":"k"}`))
	require.NoError(t, err)
	require.NotNil(t, cb.Status)
	assert.Equal(t, StatusEditing, *cb.Status)

	cb, err = ParseCallback([]byte(`{"key":"k"}`))
	require.NoError(t, err)
	assert.Nil(t, cb.Status)

	assert.True(t, KnownStatus(StatusClosed))
	assert.False(t, KnownStatus(7))
}
