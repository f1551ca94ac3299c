package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginatedEmails(t *testing.T) {
	emails := []*EmailSummary{{Filename: "a.msg"}, {Filename: "b.msg"}}

	result := NewPaginatedEmails(emails, 1, 2, 5)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 5, result.TotalEmails)
	assert.True(t, result.HasNext)
	assert.False(t, result.HasPrev)

	last := NewPaginatedEmails(emails, 3, 2, 5)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)
}

func TestNewPaginatedEmailsEmpty(t *testing.T) {
	result := NewPaginatedEmails(nil, 1, 20, 0)
	assert.NotNil(t, result.Emails)
	assert.Empty(t, result.Emails)
	assert.Equal(t, 1, result.TotalPages)
	assert.False(t, result.HasNext)
}

func TestEmailDetailSummary(t *testing.T) {
	detail := &EmailDetail{
		Filename:    "x.msg",
		Subject:     "S",
		Sender:      "a@example.com",
		Size:        123,
		Attachments: []Attachment{{Filename: "f.bin"}},
	}
	summary := detail.Summary()
	assert.Equal(t, "x.msg", summary.Filename)
	assert.Equal(t, int64(123), summary.Size)
	assert.True(t, summary.HasAttachments)
	assert.Equal(t, 1, summary.AttachmentCount)
	assert.NotNil(t, summary.Recipients)
}

func TestSearchRequestHasCriteria(t *testing.T) {
	assert.False(t, (&SearchRequest{Page: 3, PageSize: 10}).HasCriteria())
	assert.True(t, (&SearchRequest{Query: "x"}).HasCriteria())
	assert.True(t, (&SearchRequest{Sender: "x"}).HasCriteria())
}

func TestEmailFormatValid(t *testing.T) {
	assert.True(t, FormatJSON.Valid())
	assert.True(t, FormatText.Valid())
	assert.True(t, FormatOriginal.Valid())
	assert.False(t, EmailFormat("xml").Valid())
	assert.False(t, EmailFormat("").Valid())
}
