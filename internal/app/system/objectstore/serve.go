package objectstore

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
)

// WritePDF writes body with PDF headers. Downloads are never cached, since a
// form or paper may be replaced under the same URL.
func WritePDF(w http.ResponseWriter, body io.Reader, filename string) error {
	if filename == "" {
		filename = "document.pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": SanitizeFilename(filename)}))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, err := io.Copy(w, body)
	return err
}

// ErrNotPDF is returned by SniffPDF for content without the PDF signature.
var ErrNotPDF = errors.New("not a PDF file")

// SniffPDF checks that r starts with the PDF signature and returns a reader
// that still yields the whole content.
func SniffPDF(r io.Reader) (io.Reader, error) {
	head := make([]byte, 4)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n < 4 || string(head) != "%PDF" {
		return nil, ErrNotPDF
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}
