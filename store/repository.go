// Package store answers listing, lookup, search, and stats queries over
// the configured mail folder. The folder is re-scanned on every call;
// there is no durable index to invalidate.
package store

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"msgview/models"
	"msgview/msgfile"
	"msgview/utils"
)

// ErrNotFound is returned when no file in the folder has the requested name
var ErrNotFound = errors.New("email not found")

// Repository enumerates and parses the mail folder
type Repository struct {
	folder string
	parser *msgfile.Parser
	cache  *recordCache
	log    *utils.Logger
	sem    chan struct{} // caps concurrent file parses
}

// NewRepository creates a repository over one folder. maxConcurrentParses
// bounds file-descriptor and memory use when many requests scan at once.
func NewRepository(folder string, parser *msgfile.Parser, maxConcurrentParses int) *Repository {
	if maxConcurrentParses < 1 {
		maxConcurrentParses = 4
	}
	return &Repository{
		folder: folder,
		parser: parser,
		cache:  newRecordCache(),
		log:    utils.Log.Tagged("store"),
		sem:    make(chan struct{}, maxConcurrentParses),
	}
}

// fileEntry is one .msg file found during a folder scan
type fileEntry struct {
	path    string
	name    string
	size    int64
	modTime time.Time
}

// record pairs a summary with its stable sort key
type record struct {
	summary  *models.EmailSummary
	sortDate time.Time
	filename string
}

// scan walks the folder for .msg files, sorted by filename. Unreadable
// subtrees and files that vanish mid-walk are skipped.
func (r *Repository) scan() []fileEntry {
	var entries []fileEntry

	filepath.WalkDir(r.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log.Warn("Skipping unreadable path %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".msg") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, fileEntry{
			path:    path,
			name:    d.Name(),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries
}

// records parses every file in the folder into a summary, skipping files
// that fail to parse or disappear between scan and parse
func (r *Repository) records() []*record {
	entries := r.scan()

	current := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		current[entry.path] = struct{}{}
	}
	r.cache.prune(current)

	results := make([]*record, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry fileEntry) {
			defer wg.Done()
			r.sem <- struct{}{}
			defer func() { <-r.sem }()

			summary, ok := r.cache.get(entry.path, entry.size, entry.modTime)
			if !ok {
				parsed, err := r.parser.Summary(entry.path)
				if err != nil {
					r.log.Warn("Skipping %s: %v", entry.name, err)
					return
				}
				r.cache.put(entry.path, entry.size, entry.modTime, parsed)
				summary = parsed
			}

			sortDate := entry.modTime
			if summary.Date != nil {
				sortDate = *summary.Date
			}
			results[i] = &record{
				summary:  summary,
				sortDate: sortDate,
				filename: entry.name,
			}
		}(i, entry)
	}
	wg.Wait()

	records := make([]*record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

// sortRecords orders by date descending, ties broken by filename ascending
func sortRecords(records []*record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].sortDate.Equal(records[j].sortDate) {
			return records[i].sortDate.After(records[j].sortDate)
		}
		return records[i].filename < records[j].filename
	})
}

// pageOf slices one page out of sorted records. Out-of-range pages yield
// an empty slice.
func pageOf(records []*record, page, pageSize int) []*models.EmailSummary {
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}

	summaries := make([]*models.EmailSummary, 0, end-start)
	for _, rec := range records[start:end] {
		summaries = append(summaries, rec.summary)
	}
	return summaries
}

// List returns one page of summaries in the stable listing order
func (r *Repository) List(page, pageSize int) (*models.PaginatedEmails, error) {
	records := r.records()
	sortRecords(records)
	return models.NewPaginatedEmails(pageOf(records, page, pageSize), page, pageSize, len(records)), nil
}

// Resolve maps a bare filename to its full path and size within the folder
func (r *Repository) Resolve(filename string) (string, int64, error) {
	for _, entry := range r.scan() {
		if entry.name == filename {
			return entry.path, entry.size, nil
		}
	}
	return "", 0, ErrNotFound
}

// Get returns the fully parsed record for one filename. A file that
// vanishes between resolve and parse reports as not found, not as a
// parse failure.
func (r *Repository) Get(filename string) (*models.EmailDetail, error) {
	path, _, err := r.Resolve(filename)
	if err != nil {
		return nil, err
	}
	detail, err := r.parser.Parse(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return detail, nil
}

// AttachmentData returns the raw bytes of one attachment of one email
func (r *Repository) AttachmentData(filename, attachmentName string) ([]byte, error) {
	path, _, err := r.Resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := r.parser.AttachmentData(path, attachmentName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Stats aggregates the folder without parsing any file
func (r *Repository) Stats() *models.StatsSummary {
	var totalSize int64
	entries := r.scan()
	for _, entry := range entries {
		totalSize += entry.size
	}
	return &models.StatsSummary{
		TotalEmails:    len(entries),
		TotalSizeBytes: totalSize,
		EmailFolder:    r.folder,
	}
}
