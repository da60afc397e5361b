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

// Package docparser extracts plain text from uploaded document bytes.
// Dispatch is by filename suffix, case-insensitive: .pdf, .docx,
// .txt/.md, everything else is UnsupportedFormat. The PDF and DOCX
// libraries are untrusted input parsers; malformed files are known to
// panic inside them, so both paths run under recover().
package docparser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Parse extracts plain text from filename's bytes, dispatching on the
// filename's extension. An empty result after trimming whitespace is
// reported as apperrors.KindEmptyDocument rather than returned silently.
func Parse(filename string, data []byte) (text string, err error) {
	ext := strings.ToLower(suffix(filename))
	switch ext {
	case ".pdf":
		text, err = parsePDF(filename, data)
	case ".docx":
		text, err = parseDOCX(filename, data)
	case ".txt", ".md":
		text, err = parsePlainText(data), nil
	default:
		return "", apperrors.NewUnsupportedFormat(filename)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.NewEmptyDocument(filename)
	}
	return text, nil
}

func suffix(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	return filename[idx:]
}

func parsePDF(filename string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewUnsupportedFormat(filename)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewUnsupportedFormat(filename)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func parseDOCX(filename string, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewUnsupportedFormat(filename)
		}
	}()

	doc, readErr := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if readErr != nil {
		return "", fmt.Errorf("opening docx: %w", readErr)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	paragraphs := strings.Split(content, "\n")
	return strings.Join(paragraphs, "\n"), nil
}

// parsePlainText decodes data as UTF-8, replacing invalid byte
// sequences with the Unicode replacement character rather than failing.
func parsePlainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		b.WriteRune(r)
		data = data[size:]
	}
	return b.String()
}
