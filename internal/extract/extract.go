package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePlain = "text/plain"
)

// ErrUnsupported is returned for payloads that are not PDF, DOCX or plain text.
var ErrUnsupported = errors.New("unsupported file type")

// Supported reports whether a payload can be extracted and returns its normalized mime type.
func Supported(data []byte, declared, fileName string) (string, bool) {
	mime := DetectMime(data, declared, fileName)
	switch mime {
	case MimePDF, MimeDOCX, MimePlain:
		return mime, true
	default:
		return mime, false
	}
}

// DetectMime sniffs the payload and falls back to the declared type and file extension.
func DetectMime(data []byte, declared, fileName string) string {
	if len(data) > 0 {
		detected := mimetype.Detect(data)
		switch {
		case detected.Is(MimePDF):
			return MimePDF
		case detected.Is(MimeDOCX):
			return MimeDOCX
		case detected.Is(MimePlain):
			return MimePlain
		}
	}

	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	switch clean {
	case MimePDF, MimeDOCX, MimePlain:
		return clean
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".txt":
		return MimePlain
	}

	return clean
}

// Text extracts plain text from an in-memory document.
func Text(ctx context.Context, data []byte, declared, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty document")
	}

	mime, ok := Supported(data, declared, fileName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}

	var (
		text string
		err  error
	)
	switch mime {
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	default:
		text = string(bytes.ToValidUTF8(data, []byte("�")))
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", mime, err)
	}

	return strings.TrimSpace(text), nil
}

// extractPDF converts panics from the pdf reader on malformed input into errors.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			return "", fmt.Errorf("page %d: %w", i, pageErr)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(pageText)
	}

	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	return stripDocxXML(doc.Editable().GetContent()), nil
}

// stripDocxXML keeps character data and turns paragraph and line breaks into newlines.
func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var b strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return strings.TrimSpace(b.String())
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				b.WriteString("\t")
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && b.Len() > 0 {
				b.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(b.String())
}
