package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/domain"
)

const caseRecordName = "case.json"

// FileCaseStore persists one directory per case under its root: the case
// record as JSON next to a copy of the image. Case ids are random UUIDs and
// never reused; collision is treated as unreachable. Reads go through a
// small in-process LRU cache.
type FileCaseStore struct {
	dir   string
	log   *logrus.Logger
	mu    sync.Mutex
	cache *lru.Cache[string, *domain.Case]
}

// NewFileCaseStore creates a new case store rooted at dir. cacheSize bounds
// the read cache; values below 1 fall back to a minimal cache.
func NewFileCaseStore(dir string, cacheSize int, logger *logrus.Logger) (*FileCaseStore, error) {
	if cacheSize < 1 {
		cacheSize = 16
	}
	cache, err := lru.New[string, *domain.Case](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating case cache: %w", err)
	}
	return &FileCaseStore{dir: dir, log: logger, cache: cache}, nil
}

// Create stores the image and writes the full case record, returning the
// generated case id.
func (s *FileCaseStore) Create(image []byte, imageName string, features []float64, predictions []domain.PredictionRecord, reportContent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caseID := uuid.NewString()
	caseDir := filepath.Join(s.dir, caseID)
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return "", &domain.PersistenceError{Op: "create case directory", Path: caseDir, Err: err}
	}

	hash := sha256.Sum256(image)

	imageFile := "image" + strings.ToLower(filepath.Ext(imageName))
	imagePath := filepath.Join(caseDir, imageFile)
	if err := os.WriteFile(imagePath, image, 0o644); err != nil {
		return "", &domain.PersistenceError{Op: "write case image", Path: imagePath, Err: err}
	}

	record := &domain.Case{
		CaseID:    caseID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Image: domain.CaseImage{
			Name: imageName,
			Path: filepath.Join(caseID, imageFile),
			Hash: hex.EncodeToString(hash[:]),
		},
		Features:    features,
		Predictions: predictions,
		Report:      domain.CaseReport{Content: reportContent},
	}

	if err := s.writeRecord(record); err != nil {
		return "", err
	}
	s.cache.Add(caseID, record)

	s.log.WithFields(logrus.Fields{
		"case_id":    caseID,
		"image_name": imageName,
	}).Info("Case created")

	return caseID, nil
}

// Get fetches a case by id.
func (s *FileCaseStore) Get(caseID string) (*domain.Case, error) {
	if cached, ok := s.cache.Get(caseID); ok {
		return cached, nil
	}

	record, err := s.readRecord(caseID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(caseID, record)
	return record, nil
}

// ListRecent returns up to limit case summaries, newest first.
func (s *FileCaseStore) ListRecent(limit int) ([]domain.CaseSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.PersistenceError{Op: "list cases", Path: s.dir, Err: err}
	}

	var summaries []domain.CaseSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		record, err := s.Get(entry.Name())
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"case_id": entry.Name(),
				"error":   err,
			}).Warn("Skipping unreadable case record")
			continue
		}
		summaries = append(summaries, domain.CaseSummary{
			CaseID:    record.CaseID,
			Timestamp: record.Timestamp,
			ImageName: record.Image.Name,
		})
	}

	// RFC 3339 timestamps order lexicographically.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})

	if limit >= 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// SetVerification records the radiologist's judgment on a case. Rejected
// transitions (unknown case, unrecognized status, flag without a reason)
// return ok=false with a nil error; storage failures return the error so
// callers can tell a missing case from a failed write. Transitions
// overwrite: moving away from flagged strips the reason, and no history is
// kept. There is no path back to pending.
func (s *FileCaseStore) SetVerification(caseID string, status domain.VerificationStatus, reason, verifiedBy string) (bool, error) {
	if status != domain.VerificationVerified && status != domain.VerificationFlagged {
		s.log.WithFields(logrus.Fields{
			"case_id": caseID,
			"status":  status,
		}).Warn("Rejected verification with unrecognized status")
		return false, nil
	}
	if status == domain.VerificationFlagged && reason == "" {
		s.log.WithField("case_id", caseID).Warn("Rejected flag without a reason")
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.readRecord(caseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.WithField("case_id", caseID).Warn("Verification target not found")
			return false, nil
		}
		return false, err
	}

	verification := &domain.Verification{
		Status:     status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		VerifiedBy: verifiedBy,
	}
	if status == domain.VerificationFlagged {
		verification.Reason = reason
	}
	record.Verification = verification

	if err := s.writeRecord(record); err != nil {
		s.log.WithFields(logrus.Fields{
			"case_id": caseID,
			"error":   err,
		}).Error("Failed to persist verification")
		return false, err
	}
	s.cache.Add(caseID, record)

	s.log.WithFields(logrus.Fields{
		"case_id": caseID,
		"status":  status,
	}).Info("Case verification updated")
	return true, nil
}

// readRecord loads a case record from disk. The id is validated as a UUID
// so a crafted id cannot escape the store root.
func (s *FileCaseStore) readRecord(caseID string) (*domain.Case, error) {
	if _, err := uuid.Parse(caseID); err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
	}

	path := filepath.Join(s.dir, caseID, caseRecordName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
		}
		return nil, &domain.PersistenceError{Op: "read case", Path: path, Err: err}
	}

	var record domain.Case
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &domain.PersistenceError{Op: "decode case", Path: path, Err: err}
	}
	return &record, nil
}

// writeRecord replaces a case record atomically.
func (s *FileCaseStore) writeRecord(record *domain.Case) error {
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode case", Err: err}
	}

	path := filepath.Join(s.dir, record.CaseID, caseRecordName)
	if err := writeFileAtomic(path, data); err != nil {
		return &domain.PersistenceError{Op: "write case", Path: path, Err: err}
	}
	return nil
}
