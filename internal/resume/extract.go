// Package resume turns an uploaded resume file into plain text.
package resume

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

const (
	MaxFileSize   = 5 << 20
	MinTextLength = 10
)

const (
	MimePDF     = "application/pdf"
	MimeDOC     = "application/msword"
	MimeDOCX    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText    = "text/plain"
	MimeHTML    = "text/html"
	MimeHTMLAlt = "application/html"
)

var (
	ErrUnsupportedType = errors.New("resume: unsupported file type")
	ErrTooLarge        = errors.New("resume: file size exceeds 5MB limit")
	ErrTooShort        = errors.New("resume: could not extract meaningful content")
)

// SupportedFormats is the user-facing list returned with unsupported-type errors.
var SupportedFormats = []string{"PDF", "DOC", "DOCX", "TXT", "HTML"}

// NormalizeMime lowercases the media type and drops parameters such as charset.
func NormalizeMime(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

func IsSupported(declared string) bool {
	switch NormalizeMime(declared) {
	case MimePDF, MimeDOC, MimeDOCX, MimeText, MimeHTML, MimeHTMLAlt:
		return true
	}
	return false
}

// Extract returns the text of a resume. PDF and Word files that cannot be
// parsed yield a deterministic placeholder naming the file.
func Extract(fileName, declaredMime string, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", ErrTooLarge
	}

	var text string
	switch NormalizeMime(declaredMime) {
	case MimeText:
		text = strings.TrimSpace(string(data))
	case MimeHTML, MimeHTMLAlt:
		text = htmlText(data)
	case MimePDF:
		text = pdfText(data)
		if !meaningful(text) {
			text = "Resume content from PDF: " + fileName
		}
	case MimeDOCX:
		text = docxText(data)
		if !meaningful(text) {
			text = "Resume content from Word document: " + fileName
		}
	case MimeDOC:
		text = "Resume content from Word document: " + fileName
	default:
		return "", ErrUnsupportedType
	}

	if !meaningful(text) {
		return "", ErrTooShort
	}
	return text, nil
}

func meaningful(s string) bool {
	return utf8.RuneCountInString(s) >= MinTextLength
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func htmlText(data []byte) string {
	z := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapse(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTag(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTag(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				// Text() already unescapes entities
				b.Write(z.Text())
			}
		}
	}
}

func isRawTag(name []byte) bool {
	s := string(name)
	return s == "script" || s == "style"
}

// pdfText never panics; the parser is not hardened against malformed input.
func pdfText(data []byte) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(plain, MaxFileSize))
	if err != nil {
		return ""
	}
	return collapse(string(b))
}

func docxText(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		defer rc.Close()
		text, err := wordXMLText(io.LimitReader(rc, 4*MaxFileSize))
		if err != nil {
			return ""
		}
		return text
	}
	return ""
}

// wordXMLText concatenates <w:t> runs, one line per paragraph.
func wordXMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var lines []string
	var cur strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("word xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := collapse(cur.String()); line != "" {
					lines = append(lines, line)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if line := collapse(cur.String()); line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
