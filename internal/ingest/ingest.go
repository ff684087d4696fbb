// Package ingest turns uploaded study documents into plain text.
package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

const (
	ExtPDF  = "pdf"
	ExtDOCX = "docx"
	ExtTXT  = "txt"

	maxParallel = 4
)

// SupportedExtensions lists the accepted upload types.
var SupportedExtensions = []string{ExtPDF, ExtDOCX, ExtTXT}

// UnsupportedInputError reports an upload whose type cannot be read.
type UnsupportedInputError struct {
	Name string
	Ext  string
}

func (e *UnsupportedInputError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "unknown"
	}
	if e.Name != "" {
		return fmt.Sprintf("unsupported file type %q for %s (supported: pdf, docx, txt)", ext, e.Name)
	}
	return fmt.Sprintf("unsupported file type %q (supported: pdf, docx, txt)", ext)
}

// IsUnsupported reports whether err is, or wraps, an *UnsupportedInputError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedInputError
	return errors.As(err, &ue)
}

// NormalizeExt lower-cases ext and drops a leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

func isSupported(ext string) bool {
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ExtractText reads plain text from data according to ext (pdf, docx or txt).
func ExtractText(data []byte, ext string) (string, error) {
	switch NormalizeExt(ext) {
	case ExtPDF:
		return extractPDF(data)
	case ExtDOCX:
		return extractDOCX(data)
	case ExtTXT:
		return decodeText(data), nil
	default:
		return "", &UnsupportedInputError{Ext: NormalizeExt(ext)}
	}
}

// DetectExtension prefers the file name's extension and falls back to sniffing the content.
// The result may be unsupported; ExtractText reports that.
func DetectExtension(name string, data []byte) string {
	ext := NormalizeExt(filepath.Ext(name))
	if isSupported(ext) {
		return ext
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if sniffed := NormalizeExt(m.Extension()); isSupported(sniffed) {
			return sniffed
		}
	}
	return ext
}

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// Document is the text read from one File.
type Document struct {
	Name string `json:"name"`
	Ext  string `json:"ext"`
	Text string `json:"-"`
}

// ExtractFiles reads every file concurrently and returns the documents in upload order.
// The first failure cancels the rest.
func ExtractFiles(ctx context.Context, files []File) ([]Document, error) {
	docs := make([]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ext := DetectExtension(f.Name, f.Data)
			text, err := ExtractText(f.Data, ext)
			if err != nil {
				var ue *UnsupportedInputError
				if errors.As(err, &ue) {
					ue.Name = f.Name
					return ue
				}
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
			docs[i] = Document{Name: f.Name, Ext: ext, Text: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// JoinText concatenates document texts, separated by blank lines.
func JoinText(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if t := strings.TrimSpace(d.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		pages = append(pages, pageText(r, i, fonts))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// pageText returns "" for pages that cannot be read.
func pageText(r *pdf.Reader, n int, fonts map[string]*pdf.Font) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	p := r.Page(n)
	if p.V.IsNull() {
		return ""
	}
	s, err := p.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return s
}

// extractDOCX reads word/document.xml, one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx archive: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("docx archive: word/document.xml not found")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("docx open: %w", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("docx read: %w", err)
	}
	return paragraphsFromXML(body), nil
}

func paragraphsFromXML(body []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		paras []string
		cur   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				var v string
				if err := dec.DecodeElement(&v, &el); err == nil {
					cur.WriteString(v)
				}
			case "tab":
				cur.WriteString("\t")
			case "br":
				cur.WriteString("\n")
			}
		case xml.EndElement:
			if el.Name.Local == "p" {
				paras = append(paras, cur.String())
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return strings.TrimSpace(strings.Join(paras, "\n"))
}

// decodeText reads UTF-8, falling back to Latin-1 when the bytes are not valid UTF-8.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}
