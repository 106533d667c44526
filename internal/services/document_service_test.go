package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MalcolmMc23/Alumo/config"
	"github.com/MalcolmMc23/Alumo/internal/docserver"
	"github.com/MalcolmMc23/Alumo/internal/logger"
	"github.com/MalcolmMc23/Alumo/internal/models"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	"github.com/MalcolmMc23/Alumo/internal/storage"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type memAudit struct {
	mu     sync.Mutex
	events []models.CallbackEvent
}

func (m *memAudit) Insert(_ context.Context, e *models.CallbackEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *memAudit) ListByFile(_ context.Context, fileID string, _ int64) ([]models.CallbackEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CallbackEvent
	for _, e := range m.events {
		if e.FileID == fileID {
			out = append(out, e)
		}
	}
	return out, nil
}

type docFixture struct {
	svc   DocumentService
	docs  pgrepo.DocumentRepository
	store *storage.LocalStore
	audit *memAudit
	cfg   config.DocumentServerConfig
}

func testDocServerConfig() config.DocumentServerConfig {
	return config.DocumentServerConfig{
		URL:          "https://docs.example.com",
		JWTSecret:    "shared-secret",
		JWTTTL:       4 * time.Hour,
		CallbackBase: "https://app.example.com",
	}
}

func newDocFixture(t *testing.T, cfg config.DocumentServerConfig) *docFixture {
	db := openTestDB(t)
	docs := pgrepo.NewDocumentRepo(db)
	store := newLocalStore(t)
	audit := &memAudit{}
	svc := NewDocumentService(cfg, docs, audit, store, nil, logger.Discard())
	return &docFixture{svc: svc, docs: docs, store: store, audit: audit, cfg: cfg}
}

func (f *docFixture) upload(t *testing.T, userID, name, content string) *models.Document {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), userID, name, docxMime, int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	return doc
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "My_Resume__final_.docx", SanitizeFileName("My Resume (final).docx"))
	assert.Equal(t, "a-b.c", SanitizeFileName("a-b.c"))
	assert.Equal(t, "___.xlsx", SanitizeFileName("ü/\\.xlsx"))
}

func TestDocumentService_Upload(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())

	doc := f.upload(t, "u1", "Cover Letter.docx", "docx-bytes")
	assert.Equal(t, "Cover Letter.docx", doc.OriginalName)
	assert.Equal(t, doc.ID+"-Cover_Letter.docx", doc.StoredName)
	fileURL, err := f.svc.FileURL(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/uploads/"+doc.StoredName, fileURL)
	assert.EqualValues(t, len("docx-bytes"), doc.Size)

	b, err := os.ReadFile(filepath.Join(f.store.Root(), doc.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "docx-bytes", string(b))

	_, err = f.svc.Upload(context.Background(), "u1", "notes.txt", "text/plain", 3, strings.NewReader("abc"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.svc.Upload(context.Background(), "u1", "big.docx", docxMime, MaxDocumentSize+1, strings.NewReader(""))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestDocumentService_Open(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	doc := f.upload(t, "u1", "Budget.xlsx", "xlsx")
	user := &models.User{ID: "u1", Name: "Ada", Email: "ada@example.edu"}

	out, err := f.svc.Open(context.Background(), user, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, docserver.TypeCell, out.Config.DocumentType)
	assert.Equal(t, "xlsx", out.Config.Document.FileType)
	assert.Equal(t, "Budget.xlsx", out.Config.Document.Title)
	assert.Equal(t, "http://files.test/uploads/"+doc.StoredName, out.Config.Document.URL)
	assert.True(t, strings.HasPrefix(out.Config.Document.Key, doc.ID+"-1-"))
	assert.Equal(t, "https://app.example.com/api/documents/callback?fileId="+doc.ID, out.Config.EditorConfig.CallbackURL)
	assert.Equal(t, docserver.User{ID: "u1", Name: "Ada"}, out.Config.EditorConfig.User)
	assert.Equal(t, "https://docs.example.com", out.DocumentServerURL)

	decoded, err := docserver.NewSigner("shared-secret", time.Hour).VerifyConfig(out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.Config, *decoded)

	_, err = f.svc.Open(context.Background(), &models.User{ID: "u2"}, doc.ID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	_, err = f.svc.Open(context.Background(), user, "no-such-file")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestDocumentService_OpenFailsClosedWithoutConfig(t *testing.T) {
	cfg := testDocServerConfig()
	cfg.JWTSecret = ""
	f := newDocFixture(t, cfg)
	doc := f.upload(t, "u1", "a.docx", "x")

	_, err := f.svc.Open(context.Background(), &models.User{ID: "u1"}, doc.ID)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
	assert.Error(t, f.svc.TestJWT(context.Background()))
}

func TestDocumentService_CallbackSave(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	doc := f.upload(t, "u1", "report.docx", "original")

	edited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("edited content"))
	}))
	defer edited.Close()

	body := `{"status":1,"key":"k1","url":"` + edited.URL + `/cache/file.docx","users":["u1"]}`
	reply := f.svc.HandleCallback(context.Background(), doc.ID, []byte(body), "")
	assert.Equal(t, docserver.CallbackReply{Error: 0, Message: "Document updated successfully"}, reply)

	b, err := os.ReadFile(filepath.Join(f.store.Root(), doc.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "edited content", string(b))

	saved, err := f.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.EqualValues(t, len("edited content"), saved.Size)

	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "saved", f.audit.events[0].Outcome)

	history, err := f.svc.CallbackHistory(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	_, err = f.svc.CallbackHistory(context.Background(), "u2", doc.ID)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestDocumentService_CallbackStatuses(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	doc := f.upload(t, "u1", "report.docx", "original")
	ctx := context.Background()

	tests := []struct {
		name   string
		fileID string
		body   string
		want   docserver.CallbackReply
	}{
		{"editing", doc.ID, `{"status":0}`, docserver.CallbackReply{Error: 0}},
		{"edited no save", doc.ID, `{"status":2}`, docserver.CallbackReply{Error: 0}},
		{"save error", doc.ID, `{"status":3}`, docserver.CallbackReply{Error: 0}},
		{"closed", doc.ID, `{"status":4}`, docserver.CallbackReply{Error: 0}},
		{"unknown", doc.ID, `{"status":9}`, docserver.CallbackReply{Error: 1, Message: "Unknown status"}},
		{"missing status", doc.ID, `{"key":"k"}`, docserver.CallbackReply{Error: 1, Message: "Status is required"}},
		{"missing file id", "", `{"status":0}`, docserver.CallbackReply{Error: 1, Message: "File ID is required"}},
		{"save without url", doc.ID, `{"status":1}`, docserver.CallbackReply{Error: 1, Message: "URL is required for saving document"}},
		{"save unknown file", "nope", `{"status":1,"url":"http://127.0.0.1:1/x"}`, docserver.CallbackReply{Error: 1, Message: "File not found"}},
		{"bad body", doc.ID, `not json`, docserver.CallbackReply{Error: 1, Message: "Invalid callback body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.svc.HandleCallback(ctx, tt.fileID, []byte(tt.body), ""))
		})
	}

	// no status-1 callback touched the stored file
	b, err := os.ReadFile(filepath.Join(f.store.Root(), doc.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "original", string(b))
}

func TestDocumentService_CallbackDownloadFailureKeepsFile(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	doc := f.upload(t, "u1", "report.docx", "original")

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()

	reply := f.svc.HandleCallback(context.Background(), doc.ID, []byte(`{"status":1,"url":"`+broken.URL+`"}`), "")
	assert.Equal(t, 1, reply.Error)

	b, err := os.ReadFile(filepath.Join(f.store.Root(), doc.StoredName))
	require.NoError(t, err)
	assert.Equal(t, "original", string(b))
	require.Len(t, f.audit.events, 1)
	assert.Equal(t, "failed", f.audit.events[0].Outcome)
}

func TestDocumentService_CallbackVerification(t *testing.T) {
	cfg := testDocServerConfig()
	cfg.VerifyCallback = true
	f := newDocFixture(t, cfg)
	doc := f.upload(t, "u1", "report.docx", "original")
	signer := docserver.NewSigner(cfg.JWTSecret, time.Hour)
	ctx := context.Background()

	reply := f.svc.HandleCallback(ctx, doc.ID, []byte(`{"status":4}`), "")
	assert.Equal(t, docserver.CallbackReply{Error: 1, Message: "Missing token"}, reply)

	tok, err := signer.Sign(jwt.MapClaims{"status": 4})
	require.NoError(t, err)
	reply = f.svc.HandleCallback(ctx, doc.ID, []byte(`{"status":4,"token":"`+tok+`"}`), "")
	assert.Equal(t, docserver.CallbackReply{Error: 0}, reply)

	hdr, err := signer.Sign(jwt.MapClaims{"payload": map[string]any{"status": 2}})
	require.NoError(t, err)
	reply = f.svc.HandleCallback(ctx, doc.ID, []byte(`{"status":2}`), "Bearer "+hdr)
	assert.Equal(t, docserver.CallbackReply{Error: 0}, reply)

	forged, err := docserver.NewSigner("other", time.Hour).Sign(jwt.MapClaims{"status": 4})
	require.NoError(t, err)
	reply = f.svc.HandleCallback(ctx, doc.ID, []byte(`{"status":4,"token":"`+forged+`"}`), "")
	assert.Equal(t, docserver.CallbackReply{Error: 1, Message: "Invalid token"}, reply)
}

func TestDocumentService_TestJWTAndList(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	require.NoError(t, f.svc.TestJWT(context.Background()))

	f.upload(t, "u1", "a.docx", "a")
	f.upload(t, "u1", "b.pptx", "b")
	f.upload(t, "u2", "c.docx", "c")

	rows, err := f.svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

// signedStore stands in for a bucket that hands out time-limited URLs.
type signedStore struct{}

func (signedStore) Put(_ context.Context, _, _ string, r io.Reader) (int64, error) {
	return io.Copy(io.Discard, r)
}

func (signedStore) URL(_ context.Context, key string) (string, error) {
	return "https://storage.example.com/bucket/" + key + "?X-Goog-Signature=abc", nil
}

func (signedStore) Close() error { return nil }

func TestDocumentService_FileURLFollowsStore(t *testing.T) {
	db := openTestDB(t)
	svc := NewDocumentService(testDocServerConfig(), pgrepo.NewDocumentRepo(db), nil, signedStore{}, nil, logger.Discard())

	doc, err := svc.Upload(context.Background(), "u1", "Plan.docx", docxMime, 4, strings.NewReader("data"))
	require.NoError(t, err)

	u, err := svc.FileURL(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/bucket/"+doc.StorageKey+"?X-Goog-Signature=abc", u)
	assert.NotContains(t, u, "/uploads/")
}

// uuidColumnDocs fails every lookup the way a uuid column rejects malformed input.
type uuidColumnDocs struct {
	pgrepo.DocumentRepository
	lookups int
}

func (r *uuidColumnDocs) GetByID(context.Context, string) (*models.Document, error) {
	r.lookups++
	return nil, errors.New(`pq: invalid input syntax for type uuid: "abc"`)
}

func TestDocumentService_MalformedFileIDIsNotFound(t *testing.T) {
	docs := &uuidColumnDocs{}
	audit := &memAudit{}
	svc := NewDocumentService(testDocServerConfig(), docs, audit, newLocalStore(t), nil, logger.Discard())
	ctx := context.Background()

	_, err := svc.Open(ctx, &models.User{ID: "u1"}, "abc")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound), "open: %v", err)

	_, err = svc.CallbackHistory(ctx, "u1", "abc")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound), "history: %v", err)

	reply := svc.HandleCallback(ctx, "abc", []byte(`{"status":1,"url":"http://127.0.0.1:1/x"}`), "")
	assert.Equal(t, docserver.CallbackReply{Error: 1, Message: "File not found"}, reply)

	assert.Zero(t, docs.lookups)
}

func TestDocumentService_UnknownStatusIsAudited(t *testing.T) {
	f := newDocFixture(t, testDocServerConfig())
	doc := f.upload(t, "u1", "a.docx", "x")

	for _, body := range []string{`{"status":9}`, `{"status":-1}`} {
		reply := f.svc.HandleCallback(context.Background(), doc.ID, []byte(body), "")
		assert.Equal(t, docserver.CallbackReply{Error: 1, Message: "Unknown status"}, reply, body)
	}

	events, err := f.audit.ListByFile(context.Background(), doc.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "failed", e.Outcome)
		assert.Equal(t, "Unknown status", e.Error)
	}
}
