package store

import (
	"strings"

	"msgview/models"
)

// Search evaluates a structured query against the folder and returns one
// page of matches in the stable listing order. An empty query is
// equivalent to unfiltered listing. Page bounds must already be clamped
// by the caller.
func (r *Repository) Search(req *models.SearchRequest) (*models.PaginatedEmails, error) {
	records := r.records()

	if req.HasCriteria() {
		filtered := make([]*record, 0, len(records))
		for _, rec := range records {
			if matches(rec, req) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	sortRecords(records)
	return models.NewPaginatedEmails(pageOf(records, req.Page, req.PageSize), req.Page, req.PageSize, len(records)), nil
}

// matches applies all provided predicates, ANDed. Matching is
// case-insensitive substring throughout; the date window is inclusive
// with absent bounds unbounded.
func matches(rec *record, req *models.SearchRequest) bool {
	summary := rec.summary

	// Records without a parseable date sort by file mtime; the same
	// effective date keeps date filtering consistent with ordering.
	if req.DateFrom != nil && rec.sortDate.Before(*req.DateFrom) {
		return false
	}
	if req.DateTo != nil && rec.sortDate.After(*req.DateTo) {
		return false
	}

	if req.Query != "" {
		query := strings.ToLower(req.Query)
		if !strings.Contains(strings.ToLower(summary.Subject), query) &&
			!strings.Contains(strings.ToLower(summary.Sender), query) &&
			!anyContains(summary.Recipients, query) {
			return false
		}
	}

	if req.Sender != "" && !strings.Contains(strings.ToLower(summary.Sender), strings.ToLower(req.Sender)) {
		return false
	}

	if req.Subject != "" && !strings.Contains(strings.ToLower(summary.Subject), strings.ToLower(req.Subject)) {
		return false
	}

	return true
}

func anyContains(values []string, loweredQuery string) bool {
	for _, value := range values {
		if strings.Contains(strings.ToLower(value), loweredQuery) {
			return true
		}
	}
	return false
}
