// Package export produces downloadable payloads from a set of mail files.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"msgview/models"
	"msgview/store"
	"msgview/utils"
)

// ErrPayloadTooLarge is returned when the requested set exceeds the
// configured payload cap
var ErrPayloadTooLarge = errors.New("requested payload exceeds the configured size limit")

// MissingFilesError names every requested filename that did not resolve
type MissingFilesError struct {
	Filenames []string
}

func (e *MissingFilesError) Error() string {
	return "emails not found: " + strings.Join(e.Filenames, ", ")
}

// Payload is a fully built download response
type Payload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Service builds export payloads through the repository
type Service struct {
	repo           *store.Repository
	maxPayloadSize int64
	log            *utils.Logger
}

// NewService creates an export service with a total payload cap in bytes
func NewService(repo *store.Repository, maxPayloadSize int64) *Service {
	return &Service{
		repo:           repo,
		maxPayloadSize: maxPayloadSize,
		log:            utils.Log.Tagged("export"),
	}
}

// get loads one email for an export, translating a file that vanished
// after resolving into the missing-files contract
func (s *Service) get(filename string) (*models.EmailDetail, error) {
	detail, err := s.repo.Get(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &MissingFilesError{Filenames: []string{filename}}
		}
		return nil, err
	}
	return detail, nil
}

// Build resolves the requested filenames and produces the payload for the
// requested format. Any missing filename fails the whole request; the
// size cap is enforced from on-disk sizes before any file is parsed or
// archived.
func (s *Service) Build(req *models.DownloadRequest) (*Payload, error) {
	paths, err := s.resolveAll(req.Filenames)
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case models.FormatOriginal:
		return s.buildZip(paths)
	case models.FormatText:
		return s.buildText(req.Filenames)
	default:
		return s.buildJSON(req.Filenames, req.IncludeAttachments)
	}
}

// resolveAll maps filenames to paths, failing with every missing name and
// checking the aggregate size cap
func (s *Service) resolveAll(filenames []string) ([]string, error) {
	var missing []string
	var totalSize int64
	paths := make([]string, 0, len(filenames))

	for _, filename := range filenames {
		path, size, err := s.repo.Resolve(filename)
		if err != nil {
			missing = append(missing, filename)
			continue
		}
		paths = append(paths, path)
		totalSize += size
	}

	if len(missing) > 0 {
		return nil, &MissingFilesError{Filenames: missing}
	}
	if totalSize > s.maxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes requested, %d allowed", ErrPayloadTooLarge, totalSize, s.maxPayloadSize)
	}
	return paths, nil
}

type exportAttachment struct {
	models.Attachment
	Data string `json:"data,omitempty"`
}

type exportEmail struct {
	*models.EmailDetail
	Attachments []exportAttachment `json:"attachments"`
}

type exportDocument struct {
	Emails          []exportEmail `json:"emails"`
	TotalCount      int           `json:"total_count"`
	ExportTimestamp time.Time     `json:"export_timestamp"`
}

func (s *Service) buildJSON(filenames []string, includeAttachments bool) (*Payload, error) {
	doc := exportDocument{
		Emails:          make([]exportEmail, 0, len(filenames)),
		ExportTimestamp: time.Now().UTC(),
	}

	for _, filename := range filenames {
		detail, err := s.get(filename)
		if err != nil {
			return nil, err
		}

		email := exportEmail{
			EmailDetail: detail,
			Attachments: make([]exportAttachment, 0, len(detail.Attachments)),
		}
		for _, att := range detail.Attachments {
			exported := exportAttachment{Attachment: att}
			if includeAttachments {
				data, err := s.repo.AttachmentData(filename, att.Filename)
				if err != nil {
					s.log.Warn("Attachment %s of %s not exported: %v", att.Filename, filename, err)
				} else {
					exported.Data = base64.StdEncoding.EncodeToString(data)
				}
			}
			email.Attachments = append(email.Attachments, exported)
		}
		doc.Emails = append(doc.Emails, email)
	}
	doc.TotalCount = len(doc.Emails)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}

	return &Payload{
		Data:        buf.Bytes(),
		ContentType: "application/json",
		Filename:    exportName("emails_export", "json"),
	}, nil
}

func (s *Service) buildText(filenames []string) (*Payload, error) {
	var b strings.Builder
	delimiter := strings.Repeat("=", 50)

	b.WriteString("EMAIL EXPORT\n")
	b.WriteString(delimiter + "\n")
	fmt.Fprintf(&b, "Export Date: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Emails: %d\n", len(filenames))
	b.WriteString(delimiter + "\n\n")

	for i, filename := range filenames {
		detail, err := s.get(filename)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "EMAIL #%d\n", i+1)
		b.WriteString(strings.Repeat("-", 30) + "\n")
		writeEmailText(&b, detail)
		b.WriteString("\n\n" + delimiter + "\n\n")
	}

	return &Payload{
		Data:        []byte(b.String()),
		ContentType: "text/plain; charset=utf-8",
		Filename:    exportName("emails_export", "txt"),
	}, nil
}

func writeEmailText(b *strings.Builder, detail *models.EmailDetail) {
	fmt.Fprintf(b, "Filename: %s\n", detail.Filename)
	fmt.Fprintf(b, "Subject: %s\n", detail.Subject)
	fmt.Fprintf(b, "From: %s\n", detail.Sender)
	fmt.Fprintf(b, "To: %s\n", strings.Join(detail.Recipients, ", "))
	if detail.Date != nil {
		fmt.Fprintf(b, "Date: %s\n", detail.Date.Format(time.RFC3339))
	} else {
		b.WriteString("Date: N/A\n")
	}
	if len(detail.Cc) > 0 {
		fmt.Fprintf(b, "CC: %s\n", strings.Join(detail.Cc, ", "))
	}
	if len(detail.Bcc) > 0 {
		fmt.Fprintf(b, "BCC: %s\n", strings.Join(detail.Bcc, ", "))
	}
	fmt.Fprintf(b, "Size: %d bytes\n", detail.Size)
	if len(detail.Attachments) > 0 {
		fmt.Fprintf(b, "Attachments: %d\n", len(detail.Attachments))
		for _, att := range detail.Attachments {
			fmt.Fprintf(b, "  - %s (%d bytes)\n", att.Filename, att.Size)
		}
	}
	b.WriteString("\nBody:\n")
	if detail.Body != "" {
		b.WriteString(detail.Body)
	} else {
		b.WriteString("No text body available")
	}
}

func (s *Service) buildZip(paths []string) (*Payload, error) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			// The file resolved moments ago; treat a racing delete as
			// a missing entry rather than a server fault.
			writer.Close()
			return nil, &MissingFilesError{Filenames: []string{filepath.Base(path)}}
		}
		entry, err := writer.Create(filepath.Base(path))
		if err == nil {
			_, err = io.Copy(entry, f)
		}
		f.Close()
		if err != nil {
			writer.Close()
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return &Payload{
		Data:        buf.Bytes(),
		ContentType: "application/zip",
		Filename:    exportName("emails_original", "zip"),
	}, nil
}

// exportName builds a collision-free download filename
func exportName(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, uuid.NewString()[:8], ext)
}
