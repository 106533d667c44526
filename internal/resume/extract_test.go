package resume

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"application/pdf", true},
		{"application/msword", true},
		{MimeDOCX, true},
		{"text/plain", true},
		{"text/plain; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/html", true},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupported(tt.mime), tt.mime)
	}
}

func TestExtract_PlainText(t *testing.T) {
	out, err := Extract("cv.txt", "text/plain", []byte("  Jane Doe, software engineer  \n"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe, software engineer", out)
}

func TestExtract_HTML(t *testing.T) {
	doc := `<html><head><style>p{color:red}</style><script>var x = 1;</script></head>
<body><h1>Jane&nbsp;Doe</h1><p>Go &amp; Rust<br/>engineer</p></body></html>`
	out, err := Extract("cv.html", "text/html", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe Go & Rust engineer", out)
}

func TestExtract_NonBreakingSpacesCollapse(t *testing.T) {
	out, err := Extract("cv.html", "text/html", []byte("<p>Jane&nbsp;&nbsp;Doe&#160;Go developer</p>"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe Go developer", out)
}

func TestExtract_PDFPlaceholder(t *testing.T) {
	out, err := Extract("resume.pdf", "application/pdf", []byte("%PDF-1.4 not really a pdf"))
	require.NoError(t, err)
	assert.Equal(t, "Resume content from PDF: resume.pdf", out)
}

func TestExtract_DOCPlaceholder(t *testing.T) {
	out, err := Extract("old.doc", "application/msword", []byte{0xd0, 0xcf, 0x11, 0xe0})
	require.NoError(t, err)
	assert.Equal(t, "Resume content from Word document: old.doc", out)
}

func TestExtract_DOCX(t *testing.T) {
	data := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Jane</w:t></w:r><w:r><w:t xml:space="preserve"> Doe</w:t></w:r></w:p>
<w:p><w:r><w:t>Backend</w:t><w:tab/><w:t>engineer</w:t></w:r></w:p>
</w:body>
</w:document>`)

	out, err := Extract("cv.docx", MimeDOCX, data)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nBackend engineer", out)
}

func TestExtract_DOCXBrokenFallsBack(t *testing.T) {
	out, err := Extract("cv.docx", MimeDOCX, []byte("PK garbage"))
	require.NoError(t, err)
	assert.Equal(t, "Resume content from Word document: cv.docx", out)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract("a.png", "image/png", []byte("whatever content"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Extract("a.txt", "text/plain", []byte("   short  "))
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = Extract("a.html", "text/html", []byte("<p> </p>"))
	assert.ErrorIs(t, err, ErrTooShort)

	big := []byte(strings.Repeat("a", MaxFileSize+1))
	_, err = Extract("a.txt", "text/plain", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)
	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
