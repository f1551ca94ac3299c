// Package msgfile decodes single mail-container files into email records.
//
// Files are tried as Outlook compound-file (.msg) containers first and fall
// back to RFC 2822 parsing, mirroring what desktop clients actually drop
// into archive folders. The package knows nothing about folders, search,
// or HTTP.
package msgfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richardlehane/mscfb"

	"msgview/models"
)

const (
	defaultSubject = "No Subject"
	defaultSender  = "Unknown Sender"
)

// ErrAttachmentNotFound is returned when a named attachment is absent
var ErrAttachmentNotFound = errors.New("attachment not found")

// ParseError wraps any failure to decode a mail file
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser decodes mail-container files
type Parser struct {
	maxFileSize int64
}

// NewParser creates a parser with a per-file size cap in bytes
func NewParser(maxFileSize int64) *Parser {
	return &Parser{maxFileSize: maxFileSize}
}

// Parse decodes one file into a fully populated EmailDetail
func (p *Parser) Parse(path string) (*models.EmailDetail, error) {
	msg, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return msg.detail(), nil
}

// Summary decodes one file into its listing row
func (p *Parser) Summary(path string) (*models.EmailSummary, error) {
	msg, err := p.load(path)
	if err != nil {
		return nil, err
	}
	return msg.detail().Summary(), nil
}

// AttachmentData returns the raw bytes of one attachment by filename
func (p *Parser) AttachmentData(path, name string) ([]byte, error) {
	msg, err := p.load(path)
	if err != nil {
		return nil, err
	}
	data, ok := msg.attachmentData(name)
	if !ok {
		return nil, ErrAttachmentNotFound
	}
	return data, nil
}

// message is the format-independent parse result
type message interface {
	detail() *models.EmailDetail
	attachmentData(name string) ([]byte, bool)
}

func (p *Parser) load(path string) (message, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if info.Size() > p.maxFileSize {
		return nil, &ParseError{
			Path: path,
			Err:  fmt.Errorf("file size %d exceeds limit %d", info.Size(), p.maxFileSize),
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	doc, oleErr := mscfb.New(f)
	if oleErr == nil {
		msg, err := parseOLE(doc, path, info.Size())
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		return msg, nil
	}

	// Not a compound file; retry the same bytes as an RFC 2822 message.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	msg, rfcErr := parseRFC2822(f, path, info.Size())
	if rfcErr != nil {
		return nil, &ParseError{
			Path: path,
			Err:  fmt.Errorf("not a MSG container (%v) and not RFC 2822 (%v)", oleErr, rfcErr),
		}
	}
	return msg, nil
}

// splitAddressList splits a display-to style header into trimmed entries
func splitAddressList(s, delimiter string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, delimiter)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// looksLikeHTML reports whether a plain body should be promoted to html_body
func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "<") || strings.Contains(strings.ToLower(body), "<html")
}
