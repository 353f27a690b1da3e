// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package docparse extracts plain text from uploaded documents.
package docparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Document kinds.
const (
	KindText = "text"
	KindPDF  = "pdf"
	KindDOCX = "docx"
	KindXLSX = "xlsx"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxCellsPerSheet = 1000
)

var ErrUnsupported = errors.New("unsupported document type")

// Result is the extracted text of one document.
type Result struct {
	Kind     string
	Content  string
	Metadata map[string]string
}

// Kind detects the document kind by mime type, then by file extension.
// It returns "" when the document is not supported.
func Kind(name, mime string) string {
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	switch {
	case mime == mimePDF:
		return KindPDF
	case mime == mimeDOCX:
		return KindDOCX
	case mime == mimeXLSX:
		return KindXLSX
	case strings.HasPrefix(mime, "text/"):
		return KindText
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".xlsx":
		return KindXLSX
	case ".txt", ".md", ".csv", ".json", ".log":
		return KindText
	}
	return ""
}

// Extract returns the text of data. Unknown kinds give ErrUnsupported.
func Extract(ctx context.Context, name, mime string, data []byte) (Result, error) {
	switch kind := Kind(name, mime); kind {
	case KindText:
		if !utf8.Valid(data) {
			return Result{}, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnsupported, name)
		}
		return Result{Kind: kind, Content: string(data), Metadata: map[string]string{}}, nil
	case KindPDF:
		return extractPDF(ctx, data)
	case KindDOCX:
		return extractDOCX(data)
	case KindXLSX:
		return extractXLSX(ctx, data)
	default:
		return Result{}, fmt.Errorf("%w: %s (%s)", ErrUnsupported, name, mime)
	}
}

func extractPDF(ctx context.Context, data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	pages := reader.NumPage()
	for n := 1; n <= pages; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", n, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", n, text))
		}
	}

	return Result{
		Kind:     KindPDF,
		Content:  strings.Join(parts, "\n\n"),
		Metadata: map[string]string{"pages": fmt.Sprint(pages)},
	}, nil
}

func extractDOCX(data []byte) (Result, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse DOCX: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	return Result{
		Kind:     KindDOCX,
		Content:  content,
		Metadata: map[string]string{"paragraphs": fmt.Sprint(len(strings.Split(content, "\n\n")))},
	}, nil
}

func extractXLSX(ctx context.Context, data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Sheet: %s ---\nError reading sheet: %v", sheet, err))
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Sheet: %s ---\n", sheet)
		cells := 0
	rows:
		for r, row := range rows {
			for c, cell := range row {
				if cells >= maxCellsPerSheet {
					b.WriteString("... (truncated)\n")
					break rows
				}
				text := strings.TrimSpace(cell)
				if text == "" {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					continue
				}
				fmt.Fprintf(&b, "%s: %s\n", ref, text)
				cells++
			}
		}
		parts = append(parts, strings.TrimSpace(b.String()))
	}

	return Result{
		Kind:     KindXLSX,
		Content:  strings.Join(parts, "\n\n"),
		Metadata: map[string]string{"sheets": fmt.Sprint(len(sheets))},
	}, nil
}
