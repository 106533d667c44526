package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/MalcolmMc23/Alumo/config"
	"github.com/MalcolmMc23/Alumo/internal/docserver"
	"github.com/MalcolmMc23/Alumo/internal/models"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	mongorepo "github.com/MalcolmMc23/Alumo/internal/repositories/mongo"
	"github.com/MalcolmMc23/Alumo/internal/resume"
	"github.com/MalcolmMc23/Alumo/internal/storage"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const MaxDocumentSize = 50 << 20

// OfficeMimeTypes are the uploads the document editor can open.
var OfficeMimeTypes = newSet(
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.ms-powerpoint",
	"application/vnd.oasis.opendocument.text",
	"application/vnd.oasis.opendocument.spreadsheet",
	"application/vnd.oasis.opendocument.presentation",
)

func newSet(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// SanitizeFileName replaces every character outside [a-zA-Z0-9.-] with '_'.
func SanitizeFileName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

type OpenedDocument struct {
	Config            docserver.Config `json:"config"`
	Token             string           `json:"token"`
	DocumentServerURL string           `json:"documentServerUrl"`
	APIScriptURL      string           `json:"apiScriptUrl"`
}

type DocumentService interface {
	Upload(ctx context.Context, userID, fileName, mimeType string, size int64, r io.Reader) (*models.Document, error)
	Open(ctx context.Context, user *models.User, fileID string) (*OpenedDocument, error)
	// HandleCallback never fails; problems are reported in the reply body.
	HandleCallback(ctx context.Context, fileID string, body []byte, authHeader string) docserver.CallbackReply
	// FileURL is where the stored blob can be fetched: a path under /uploads
	// on local disk, a signed URL on GCS.
	FileURL(ctx context.Context, doc *models.Document) (string, error)
	TestJWT(ctx context.Context) error
	List(ctx context.Context, userID string) ([]models.Document, error)
	CallbackHistory(ctx context.Context, userID, fileID string) ([]models.CallbackEvent, error)
}

type documentService struct {
	cfg    config.DocumentServerConfig
	docs   pgrepo.DocumentRepository
	audit  mongorepo.CallbackRepository // nil when Mongo is not configured
	store  storage.Store
	client *http.Client
	log    *logrus.Logger
	now    func() time.Time
}

func NewDocumentService(
	cfg config.DocumentServerConfig,
	docs pgrepo.DocumentRepository,
	audit mongorepo.CallbackRepository,
	store storage.Store,
	client *http.Client,
	l *logrus.Logger,
) DocumentService {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &documentService{cfg: cfg, docs: docs, audit: audit, store: store, client: client, log: l, now: time.Now}
}

func (s *documentService) Upload(ctx context.Context, userID, fileName, mimeType string, size int64, r io.Reader) (*models.Document, error) {
	const op = "DocumentService.Upload"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "No file provided", nil)
	}
	mt := resume.NormalizeMime(mimeType)
	if _, ok := OfficeMimeTypes[mt]; !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Unsupported file type", nil)
	}
	if size > MaxDocumentSize {
		return nil, utils.E(utils.CodeInvalidArgument, op, "File size exceeds 50MB limit", nil)
	}

	id := uuid.NewString()
	stored := id + "-" + SanitizeFileName(fileName)

	lr := &io.LimitedReader{R: r, N: MaxDocumentSize + 1}
	written, err := s.store.Put(ctx, stored, mt, lr)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to store file", err)
	}
	if written > MaxDocumentSize {
		return nil, utils.E(utils.CodeInvalidArgument, op, "File size exceeds 50MB limit", nil)
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:           id,
		UserID:       userID,
		OriginalName: fileName,
		StoredName:   stored,
		StorageKey:   stored,
		MimeType:     mt,
		Size:         written,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to register file", err)
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, user *models.User, fileID string) (*OpenedDocument, error) {
	const op = "DocumentService.Open"

	if user == nil {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if fileID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "File ID is required", nil)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "document server is not configured", err)
	}
	if !isRowID(fileID) {
		return nil, utils.E(utils.CodeNotFound, op, "File not found", nil)
	}

	doc, err := s.docs.GetByID(ctx, fileID)
	if errors.Is(err, utils.ErrNotFound) || (err == nil && doc.UserID != user.ID) {
		return nil, utils.E(utils.CodeNotFound, op, "File not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to get document", err)
	}

	fileURL, err := s.store.URL(ctx, doc.StorageKey)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to get document", err)
	}

	cfg := docserver.BuildConfig(docserver.ConfigParams{
		FileID:      doc.ID,
		Version:     doc.Version,
		Title:       doc.OriginalName,
		FileURL:     fileURL,
		CallbackURL: docserver.CallbackURL(s.cfg.CallbackBase, doc.ID),
		UserID:      user.ID,
		UserName:    orDefault(user.Name, user.Email),
		Now:         s.now(),
	})
	token, err := docserver.NewSigner(s.cfg.JWTSecret, s.cfg.JWTTTL).SignConfig(cfg)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to sign document config", err)
	}

	return &OpenedDocument{
		Config:            cfg,
		Token:             token,
		DocumentServerURL: s.cfg.URL,
		APIScriptURL:      s.cfg.APIScriptURL(),
	}, nil
}

func (s *documentService) HandleCallback(ctx context.Context, fileID string, body []byte, authHeader string) docserver.CallbackReply {
	const op = "DocumentService.HandleCallback"

	entry := s.log.WithFields(logrus.Fields{"op": op, "file_id": fileID})

	if fileID == "" {
		return docserver.CallbackReply{Error: 1, Message: "File ID is required"}
	}

	cb, reject := s.decodeCallback(body, authHeader)
	if reject != "" {
		entry.WithField("reason", reject).Warn("rejected document callback")
		return docserver.CallbackReply{Error: 1, Message: reject}
	}
	if cb.Status == nil {
		return docserver.CallbackReply{Error: 1, Message: "Status is required"}
	}

	status := *cb.Status
	event := &models.CallbackEvent{
		FileID:     fileID,
		Status:     status,
		URL:        cb.URL,
		Key:        cb.Key,
		Users:      cb.Users,
		Outcome:    "ack",
		ReceivedAt: s.now().UTC(),
	}

	if !docserver.KnownStatus(status) {
		event.Outcome = "failed"
		event.Error = "Unknown status"
		s.record(ctx, entry, event)
		return docserver.CallbackReply{Error: 1, Message: "Unknown status"}
	}

	reply := docserver.CallbackReply{Error: 0}
	switch status {
	case docserver.StatusReadyToSave:
		reply = s.save(ctx, fileID, cb, body)
		if reply.Error == 0 {
			event.Outcome = "saved"
		} else {
			event.Outcome = "failed"
			event.Error = reply.Message
		}
	case docserver.StatusSaveError:
		entry.WithField("key", cb.Key).Error("document server reported a save error")
	}

	s.record(ctx, entry, event)
	return reply
}

// decodeCallback applies optional inbound token verification. A token in the
// body carries the callback itself; a header token carries it under "payload".
// On rejection the second result is the message for the reply.
func (s *documentService) decodeCallback(body []byte, authHeader string) (*docserver.Callback, string) {
	cb, err := docserver.ParseCallback(body)
	if err != nil {
		return nil, "Invalid callback body"
	}
	if !s.cfg.VerifyCallback {
		return cb, ""
	}

	signer := docserver.NewSigner(s.cfg.JWTSecret, s.cfg.JWTTTL)
	var claims jwt.MapClaims
	switch {
	case cb.Token != "":
		claims, err = signer.Verify(cb.Token)
	case strings.HasPrefix(authHeader, "Bearer "):
		claims, err = signer.Verify(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if err == nil {
			if p, ok := claims["payload"].(map[string]any); ok {
				claims = p
			}
		}
	default:
		return nil, "Missing token"
	}
	if err != nil {
		return nil, "Invalid token"
	}

	b, err := json.Marshal(claims)
	if err != nil {
		return nil, "Invalid token"
	}
	verified, err := docserver.ParseCallback(b)
	if err != nil {
		return nil, "Invalid token"
	}
	return verified, ""
}

func (s *documentService) save(ctx context.Context, fileID string, cb *docserver.Callback, raw []byte) docserver.CallbackReply {
	const op = "DocumentService.save"

	entry := s.log.WithFields(logrus.Fields{"op": op, "file_id": fileID})

	if cb.URL == "" {
		return docserver.CallbackReply{Error: 1, Message: "URL is required for saving document"}
	}
	u, err := url.Parse(cb.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return docserver.CallbackReply{Error: 1, Message: "URL is invalid"}
	}
	if !isRowID(fileID) {
		return docserver.CallbackReply{Error: 1, Message: "File not found"}
	}

	doc, err := s.docs.GetByID(ctx, fileID)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			entry.WithError(err).Error("document lookup failed")
		}
		return docserver.CallbackReply{Error: 1, Message: "File not found"}
	}

	size, err := s.download(ctx, cb.URL, doc)
	if err != nil {
		entry.WithError(err).Error("failed to save edited document")
		return docserver.CallbackReply{Error: 1, Message: "Failed to download the updated document"}
	}

	if err := s.docs.RecordSave(ctx, doc.ID, size, raw, s.now().UTC()); err != nil {
		entry.WithError(err).Error("failed to record document version")
		return docserver.CallbackReply{Error: 1, Message: "Failed to record document version"}
	}
	return docserver.CallbackReply{Error: 0, Message: "Document updated successfully"}
}

func (s *documentService) download(ctx context.Context, src string, doc *models.Document) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	if resp.ContentLength > MaxDocumentSize {
		return 0, fmt.Errorf("download: document exceeds %d bytes", MaxDocumentSize)
	}

	// read fully before touching the stored blob so a truncated download never replaces it
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return 0, err
	}
	if len(data) > MaxDocumentSize {
		return 0, fmt.Errorf("download: document exceeds %d bytes", MaxDocumentSize)
	}
	return s.store.Put(ctx, doc.StorageKey, doc.MimeType, bytes.NewReader(data))
}

func (s *documentService) record(ctx context.Context, entry *logrus.Entry, e *models.CallbackEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Insert(ctx, e); err != nil {
		entry.WithError(err).Warn("callback audit write failed")
	}
}

func (s *documentService) FileURL(ctx context.Context, doc *models.Document) (string, error) {
	const op = "DocumentService.FileURL"

	u, err := s.store.URL(ctx, doc.StorageKey)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "Failed to get document", err)
	}
	return u, nil
}

func (s *documentService) TestJWT(ctx context.Context) error {
	const op = "DocumentService.TestJWT"

	if err := s.cfg.Validate(); err != nil {
		return utils.E(utils.CodeInternal, op, "document server environment validation failed", err)
	}
	signer := docserver.NewSigner(s.cfg.JWTSecret, s.cfg.JWTTTL)
	tok, err := signer.Sign(jwt.MapClaims{"test": true, "timestamp": s.now().UnixMilli()})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to sign test token", err)
	}
	claims, err := signer.Verify(tok)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to verify test token", err)
	}
	if v, _ := claims["test"].(bool); !v {
		return utils.E(utils.CodeInternal, op, "test token lost its claims", nil)
	}
	s.log.WithField("op", op).Info("JWT test successful")
	return nil
}

func (s *documentService) List(ctx context.Context, userID string) ([]models.Document, error) {
	const op = "DocumentService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	rows, err := s.docs.ListByUser(ctx, userID, 100)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list documents", err)
	}
	if rows == nil {
		rows = []models.Document{}
	}
	return rows, nil
}

func (s *documentService) CallbackHistory(ctx context.Context, userID, fileID string) ([]models.CallbackEvent, error) {
	const op = "DocumentService.CallbackHistory"

	if !isRowID(fileID) {
		return nil, utils.E(utils.CodeNotFound, op, "File not found", nil)
	}
	doc, err := s.docs.GetByID(ctx, fileID)
	if errors.Is(err, utils.ErrNotFound) || (err == nil && doc.UserID != userID) {
		return nil, utils.E(utils.CodeNotFound, op, "File not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load document", err)
	}
	if s.audit == nil {
		return []models.CallbackEvent{}, nil
	}
	rows, err := s.audit.ListByFile(ctx, fileID, 50)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "callback history is unavailable", err)
	}
	if rows == nil {
		rows = []models.CallbackEvent{}
	}
	return rows, nil
}
