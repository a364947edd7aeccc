package reader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/quangtd/docman/internal/core/domain"
)

// Reader decodes uploaded file bytes into plain text. It works
// entirely in memory; nothing is spilled to disk.
type Reader struct{}

func New() *Reader {
	return &Reader{}
}

func (r *Reader) Read(filename string, data []byte) (string, domain.FileKind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		text, err := readPDF(data)
		return text, domain.FilePDF, err
	case ".docx":
		text, err := readDOCX(data)
		return text, domain.FileDOCX, err
	case ".txt":
		text, err := readTXT(data)
		return text, domain.FileTXT, err
	case ".xlsx":
		text, err := readXLSX(data)
		return text, domain.FileXLSX, err
	default:
		return "", "", domain.WrapError(domain.ErrUnsupportedFormat, "read document",
			fmt.Errorf("unsupported file extension %q", ext))
	}
}

// readPDF recovers from panics because the pdf package raises them on
// some malformed files instead of returning an error.
func readPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrReadFailed, "read pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read pdf", err)
	}

	var sb strings.Builder
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.WrapError(domain.ErrReadFailed, "read pdf", fmt.Errorf("page %d: %w", i, err))
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// readDOCX pulls paragraph text out of word/document.xml. Each w:p
// element becomes one line, matching how word processors render the
// document.
func readDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read docx", err)
	}

	var body io.ReadCloser
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			body, err = file.Open()
			if err != nil {
				return "", domain.WrapError(domain.ErrReadFailed, "read docx", err)
			}
			break
		}
	}
	if body == nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read docx", fmt.Errorf("word/document.xml missing"))
	}
	defer body.Close()

	var (
		sb     strings.Builder
		inText bool
	)
	decoder := xml.NewDecoder(body)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", domain.WrapError(domain.ErrReadFailed, "read docx", err)
		}
		switch el := token.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// readTXT accepts UTF-8 (with or without BOM) and falls back to a
// Latin-1 interpretation for legacy files, so a text upload never
// fails outright.
func readTXT(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data)), nil
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes)), nil
}

func readXLSX(data []byte) (string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrReadFailed, "read xlsx", err)
	}
	defer book.Close()

	var sb strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", domain.WrapError(domain.ErrReadFailed, "read xlsx", fmt.Errorf("sheet %q: %w", sheet, err))
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
