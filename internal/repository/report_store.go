package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/domain"
)

const masterIndexName = "reports.json"

// FileReportStore persists reports on the local filesystem: one timestamped
// JSON file per report plus a growing master index. The store owns its
// directory exclusively. Writers are serialized behind a mutex and the
// master index is replaced atomically, so concurrent saves cannot lose
// updates or tear the index.
type FileReportStore struct {
	dir string
	log *logrus.Logger
	mu  sync.Mutex
}

// NewFileReportStore creates a new report store rooted at dir
func NewFileReportStore(dir string, logger *logrus.Logger) *FileReportStore {
	return &FileReportStore{dir: dir, log: logger}
}

// Save writes one timestamped individual record and appends the same record
// to the master index. It returns the paths of both writes.
func (s *FileReportStore) Save(dataName, reportContent string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", "", &domain.PersistenceError{Op: "create reports directory", Path: s.dir, Err: err}
	}

	now := time.Now()
	report := domain.Report{
		DataName:      dataName,
		ReportContent: reportContent,
		CreatedAt:     now.Unix(),
		CreatedAtStr:  now.Format("2006-01-02 15:04:05"),
	}

	data, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return "", "", &domain.PersistenceError{Op: "encode report", Err: err}
	}

	individualPath := filepath.Join(s.dir, fmt.Sprintf("report_%s.json", now.Format("20060102150405")))
	if err := os.WriteFile(individualPath, data, 0o644); err != nil {
		return "", "", &domain.PersistenceError{Op: "write report", Path: individualPath, Err: err}
	}

	masterPath := filepath.Join(s.dir, masterIndexName)
	reports := s.readIndex(masterPath)
	reports = append(reports, report)

	indexData, err := json.MarshalIndent(reports, "", "    ")
	if err != nil {
		return "", "", &domain.PersistenceError{Op: "encode report index", Err: err}
	}
	if err := writeFileAtomic(masterPath, indexData); err != nil {
		return "", "", &domain.PersistenceError{Op: "write report index", Path: masterPath, Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"data_name":       dataName,
		"individual_path": individualPath,
	}).Info("Report saved")

	return individualPath, masterPath, nil
}

// GetRecent returns up to limit reports, newest first. Ties on created_at
// keep their insertion order. A missing index yields an empty slice.
func (s *FileReportStore) GetRecent(limit int) ([]domain.Report, error) {
	s.mu.Lock()
	reports := s.readIndex(filepath.Join(s.dir, masterIndexName))
	s.mu.Unlock()

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt > reports[j].CreatedAt
	})

	if limit >= 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Load reads one individual report file.
func (s *FileReportStore) Load(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("report %s: %w", path, domain.ErrNotFound)
		}
		return nil, &domain.PersistenceError{Op: "read report", Path: path, Err: err}
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, &domain.PersistenceError{Op: "decode report", Path: path, Err: err}
	}
	return &report, nil
}

// readIndex loads the master index, tolerating absence and corruption.
// Unreadable history is abandoned in favor of keeping future writes
// available: a corrupt index starts over as an empty list.
func (s *FileReportStore) readIndex(path string) []domain.Report {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).Warn("Report index unreadable, starting fresh")
		}
		return nil
	}

	var reports []domain.Report
	if err := json.Unmarshal(data, &reports); err == nil {
		return reports
	}

	// Legacy shape: a single report object rather than a list.
	var single domain.Report
	if err := json.Unmarshal(data, &single); err == nil {
		return []domain.Report{single}
	}

	s.log.WithField("path", path).Warn("Report index corrupt, starting fresh")
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
