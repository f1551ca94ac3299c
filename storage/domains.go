// Package storage persists the administrator-maintained domain allow-list.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"msgview/models"
)

const domainBucket = "Domains"

var (
	ErrDomainExists   = errors.New("domain already exists")
	ErrDomainNotFound = errors.New("domain not found")
	ErrInvalidDomain  = errors.New("invalid domain name")
)

// Labels of [a-z0-9-] without leading/trailing hyphen, TLD letters only 2-24
var domainPattern = regexp.MustCompile(`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,24}$`)

// NormalizeDomain lower-cases and validates a domain string
func NormalizeDomain(domain string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(domain))
	if normalized == "" || len(normalized) > 253 || !domainPattern.MatchString(normalized) {
		return "", ErrInvalidDomain
	}
	return normalized, nil
}

// DomainStore manages the allow-listed domain registry. Updates are
// serialized by bbolt transactions.
type DomainStore struct {
	db *bbolt.DB
}

// OpenDomainStore opens (or creates) the registry database under dataDir
func OpenDomainStore(dataDir string) (*DomainStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}
	dbPath := filepath.Join(dataDir, "msgview.db")

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(domainBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DomainStore{db: db}, nil
}

// Close closes the underlying database
func (s *DomainStore) Close() error {
	return s.db.Close()
}

// Add registers a new domain, keyed by its normalized form
func (s *DomainStore) Add(domain string) (*models.DomainEntry, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	entry := &models.DomainEntry{
		Domain:  normalized,
		AddedAt: time.Now().UTC(),
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(domainBucket))
		if bucket.Get([]byte(normalized)) != nil {
			return ErrDomainExists
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(normalized), data)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all domains ordered by creation time, newest first
func (s *DomainStore) List() ([]models.DomainEntry, error) {
	var entries []models.DomainEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(domainBucket))
		return bucket.ForEach(func(_, value []byte) error {
			var entry models.DomainEntry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].AddedAt.After(entries[j].AddedAt)
		}
		return entries[i].Domain < entries[j].Domain
	})
	if entries == nil {
		entries = []models.DomainEntry{}
	}
	return entries, nil
}

// Rename replaces a domain, keeping its original creation time
func (s *DomainStore) Rename(oldDomain, newDomain string) (*models.DomainEntry, error) {
	oldNorm, err := NormalizeDomain(oldDomain)
	if err != nil {
		return nil, err
	}
	newNorm, err := NormalizeDomain(newDomain)
	if err != nil {
		return nil, err
	}

	var entry models.DomainEntry
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(domainBucket))

		existing := bucket.Get([]byte(oldNorm))
		if existing == nil {
			return ErrDomainNotFound
		}
		if oldNorm == newNorm {
			return json.Unmarshal(existing, &entry)
		}
		if bucket.Get([]byte(newNorm)) != nil {
			return ErrDomainExists
		}

		if err := json.Unmarshal(existing, &entry); err != nil {
			return err
		}
		entry.Domain = newNorm

		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		if err := bucket.Delete([]byte(oldNorm)); err != nil {
			return err
		}
		return bucket.Put([]byte(newNorm), data)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes a domain from the registry
func (s *DomainStore) Delete(domain string) error {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(domainBucket))
		if bucket.Get([]byte(normalized)) == nil {
			return ErrDomainNotFound
		}
		return bucket.Delete([]byte(normalized))
	})
}
