// Package extract converts uploaded resume documents into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MediaPDF    = "application/pdf"
	MediaDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaMSWord = "application/msword"
	MediaText   = "text/plain"

	// binarySampleSize is the number of bytes inspected to tell text from binary.
	binarySampleSize = 1000
	// binaryThreshold is the share of control bytes above which data is binary.
	binaryThreshold = 0.3
)

// parse is replaced in tests.
var parse = extract

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrParseFailure      = errors.New("document could not be parsed")
)

// Extract returns the plain text of data declared as mediaType. Parameters
// such as charset are ignored.
//
// Cancelling ctx makes Extract return ctx.Err() at once, but the document
// readers cannot be interrupted: the parsing goroutine keeps running until it
// finishes on its own and its result is discarded. Callers bound that work by
// capping the size of data.
func Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	kind, err := normalize(mediaType)
	if err != nil {
		return "", err
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		text, err := parse(kind, data)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", fmt.Errorf("%w: no text found", ErrParseFailure)
		}
		return text, nil
	}
}

// MediaTypeFromPath guesses the media type from a file extension.
func MediaTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return MediaPDF
	case ".docx":
		return MediaDOCX
	case ".doc":
		return MediaMSWord
	case ".txt", ".md", ".text":
		return MediaText
	default:
		return ""
	}
}

func normalize(mediaType string) (string, error) {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return "", fmt.Errorf("%w: empty media type", ErrUnsupportedFormat)
	}

	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mediaType)
	}

	switch parsed {
	case MediaPDF, MediaDOCX, MediaMSWord, MediaText:
		return parsed, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, parsed)
	}
}

func extract(kind string, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrParseFailure)
	}

	// Both document readers panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrParseFailure, r)
		}
	}()

	switch kind {
	case MediaPDF:
		return pdfText(data)
	case MediaDOCX, MediaMSWord:
		return docxText(data)
	case MediaText:
		return plainText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %w", ErrParseFailure, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %w", ErrParseFailure, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: pdf read: %w", ErrParseFailure, err)
	}
	return buf.String(), nil
}

// docxText reads word/document.xml. Legacy binary .doc files are not zip
// archives and fail here.
func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %w", ErrParseFailure, err)
	}
	defer doc.Close()

	return xmlToText(doc.Editable().GetContent()), nil
}

func plainText(data []byte) (string, error) {
	if isBinary(data) {
		return "", fmt.Errorf("%w: binary content declared as text", ErrParseFailure)
	}
	if !utf8.Valid(data) {
		return strings.ToValidUTF8(string(data), ""), nil
	}
	return string(data), nil
}

// isBinary detects PDF and zip signatures or a high share of control bytes.
func isBinary(data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) || bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return true
	}

	sample := data[:min(binarySampleSize, len(data))]
	control := 0
	for _, b := range sample {
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return float64(control)/float64(len(sample)) > binaryThreshold
}
