// Package docserver builds editor configurations for an ONLYOFFICE-compatible
// document server and signs the tokens it exchanges with it.
package docserver

import (
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	TypeWord  = "word"
	TypeCell  = "cell"
	TypeSlide = "slide"
)

type Document struct {
	FileType string `json:"fileType"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Editor struct {
	CallbackURL string `json:"callbackUrl"`
	Lang        string `json:"lang"`
	Mode        string `json:"mode"`
	User        User   `json:"user"`
}

// Config is the object the browser passes to DocsAPI.DocEditor.
type Config struct {
	Document     Document `json:"document"`
	DocumentType string   `json:"documentType"`
	EditorConfig Editor   `json:"editorConfig"`
}

// FileExt is the lowercased extension of name without the dot.
func FileExt(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// DocumentType picks the editor for an extension; anything unknown opens as text.
func DocumentType(ext string) string {
	switch strings.ToLower(ext) {
	case "xlsx", "xls", "ods":
		return TypeCell
	case "pptx", "ppt", "odp":
		return TypeSlide
	default:
		return TypeWord
	}
}

// DocumentKey changes with every saved version so the server never serves a stale cache.
func DocumentKey(fileID string, version int, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", fileID, version, at.UnixMilli())
}

// CallbackURL is where the server reports editing state for fileID.
func CallbackURL(base, fileID string) string {
	return strings.TrimRight(base, "/") + "/api/documents/callback?fileId=" + fileID
}

type ConfigParams struct {
	FileID      string
	Version     int
	Title       string
	FileURL     string
	CallbackURL string
	UserID      string
	UserName    string
	Now         time.Time
}

func BuildConfig(p ConfigParams) Config {
	ext := FileExt(p.Title)
	return Config{
		Document: Document{
			FileType: ext,
			Key:      DocumentKey(p.FileID, p.Version, p.Now),
			Title:    p.Title,
			URL:      p.FileURL,
		},
		DocumentType: DocumentType(ext),
		EditorConfig: Editor{
			CallbackURL: p.CallbackURL,
			Lang:        "en",
			Mode:        "edit",
			User:        User{ID: p.UserID, Name: p.UserName},
		},
	}
}
