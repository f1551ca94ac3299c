package models

import (
	"time"
)

// EmailSummary is the listing row for one mail file
type EmailSummary struct {
	Filename        string     `json:"filename"`
	Subject         string     `json:"subject"`
	Sender          string     `json:"sender"`
	Recipients      []string   `json:"recipients"`
	Date            *time.Time `json:"date,omitempty"`
	Size            int64      `json:"size"`
	HasAttachments  bool       `json:"has_attachments"`
	AttachmentCount int        `json:"attachment_count"`
}

// EmailDetail is the fully parsed form of one mail file
type EmailDetail struct {
	Filename    string            `json:"filename"`
	Subject     string            `json:"subject"`
	Sender      string            `json:"sender"`
	Recipients  []string          `json:"recipients"`
	Cc          []string          `json:"cc,omitempty"`
	Bcc         []string          `json:"bcc,omitempty"`
	Date        *time.Time        `json:"date,omitempty"`
	Body        string            `json:"body"`
	HTMLBody    string            `json:"html_body,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []Attachment      `json:"attachments"`
	Size        int64             `json:"size"`
}

// Attachment represents attachment metadata within an email
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Summary derives the listing row from a parsed detail record
func (d *EmailDetail) Summary() *EmailSummary {
	recipients := d.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return &EmailSummary{
		Filename:        d.Filename,
		Subject:         d.Subject,
		Sender:          d.Sender,
		Recipients:      recipients,
		Date:            d.Date,
		Size:            d.Size,
		HasAttachments:  len(d.Attachments) > 0,
		AttachmentCount: len(d.Attachments),
	}
}

// SearchRequest is a structured email search query
type SearchRequest struct {
	Query    string     `json:"query"`
	Sender   string     `json:"sender"`
	Subject  string     `json:"subject"`
	DateFrom *time.Time `json:"date_from"`
	DateTo   *time.Time `json:"date_to"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// HasCriteria reports whether any filter predicate is set
func (r *SearchRequest) HasCriteria() bool {
	return r.Query != "" || r.Sender != "" || r.Subject != "" ||
		r.DateFrom != nil || r.DateTo != nil
}

// EmailFormat enumerates export output formats
type EmailFormat string

const (
	FormatJSON     EmailFormat = "json"
	FormatText     EmailFormat = "text"
	FormatOriginal EmailFormat = "original" // original .msg files zipped without parsing
)

// Valid reports whether the format is one of the known values
func (f EmailFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatText, FormatOriginal:
		return true
	}
	return false
}

// DownloadRequest asks for an export of a set of mail files
type DownloadRequest struct {
	Filenames          []string    `json:"filenames"`
	Format             EmailFormat `json:"format"`
	IncludeAttachments bool        `json:"include_attachments"`
}

// DomainEntry is one allow-listed email domain
type DomainEntry struct {
	Domain  string    `json:"domain"`
	AddedAt time.Time `json:"added_at"`
}

// StatsSummary aggregates the mail folder
type StatsSummary struct {
	TotalEmails    int    `json:"total_emails"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	EmailFolder    string `json:"email_folder"`
}
