package models

// PaginatedEmails represents a paginated list of email summaries
type PaginatedEmails struct {
	Emails      []*EmailSummary `json:"emails"`
	Page        int             `json:"page"`
	PageSize    int             `json:"page_size"`
	TotalPages  int             `json:"total_pages"`
	TotalEmails int             `json:"total_emails"`
	HasNext     bool            `json:"has_next"`
	HasPrev     bool            `json:"has_prev"`
}

// NewPaginatedEmails creates a new paginated emails response
func NewPaginatedEmails(emails []*EmailSummary, page, pageSize, totalEmails int) *PaginatedEmails {
	totalPages := (totalEmails + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	if emails == nil {
		emails = []*EmailSummary{}
	}

	return &PaginatedEmails{
		Emails:      emails,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		TotalEmails: totalEmails,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}
