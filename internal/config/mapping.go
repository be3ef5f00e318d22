package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cxr-report-server/internal/domain"
)

// defaultMapping is the hard-coded section taxonomy used when the mapping
// file cannot be loaded. Feature id order within each section is the
// display order and must not be re-sorted.
func defaultMapping() domain.SectionMapping {
	return domain.SectionMapping{
		{Name: "Lung", FeatureIDs: []int{8, 2, 3, 9, 10, 1, 5, 6}},
		{Name: "Mediastinum", FeatureIDs: []int{15, 28, 13, 17, 72, 73}},
		{Name: "Bone", FeatureIDs: []int{20, 116, 27, 42, 18, 19, 24, 23}},
		{Name: "Cardiac Silhouette", FeatureIDs: []int{14}},
		{Name: "Diagnosis", FeatureIDs: []int{7, 12, 16}},
		{Name: "Catheter/Implant", FeatureIDs: []int{44, 43, 41, 34, 35, 40, 36, 32, 33, 37, 38, 39}},
	}
}

// mappingFile is the on-disk shape of the section mapping: an ordered list
// of sections, each with its ordered feature ids.
type mappingFile struct {
	Sections []domain.SectionEntry `yaml:"sections"`
}

// MappingLoader provides the current section mapping, substituting the
// hard-coded default when the configured file is unavailable. The fallback
// is logged and surfaced through MappingResult.Source.
type MappingLoader struct {
	path string
	log  *logrus.Logger

	mu      sync.RWMutex
	current domain.MappingResult
}

// NewMappingLoader loads the mapping at path, falling back to the built-in
// default on any load failure. It never returns an error: availability is
// preferred over strictness.
func NewMappingLoader(path string, logger *logrus.Logger) *MappingLoader {
	l := &MappingLoader{path: path, log: logger}
	l.reload()
	return l
}

// Current returns the mapping in effect and where it came from.
func (l *MappingLoader) Current() domain.MappingResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// reload re-reads the mapping file and swaps the result in.
func (l *MappingLoader) reload() {
	result, err := loadMappingFile(l.path)
	if err != nil {
		l.log.WithFields(logrus.Fields{
			"path":  l.path,
			"error": err,
		}).Warn("Section mapping unavailable, using built-in default")
		result = domain.MappingResult{Mapping: defaultMapping(), Source: domain.MappingSourceFallback}
	}

	l.mu.Lock()
	l.current = result
	l.mu.Unlock()
}

// loadMappingFile parses the yaml mapping file, rejecting empty or
// structurally unusable content.
func loadMappingFile(path string) (domain.MappingResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MappingResult{}, fmt.Errorf("reading mapping file: %w", err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.MappingResult{}, fmt.Errorf("parsing mapping file: %w", err)
	}
	if len(file.Sections) == 0 {
		return domain.MappingResult{}, fmt.Errorf("mapping file %s declares no sections", path)
	}
	for _, section := range file.Sections {
		if section.Name == "" {
			return domain.MappingResult{}, fmt.Errorf("mapping file %s contains an unnamed section", path)
		}
	}

	return domain.MappingResult{Mapping: file.Sections, Source: domain.MappingSourceFile}, nil
}

// Watch reloads the mapping whenever the file changes on disk. The watcher
// runs until stop is closed. Watching the parent directory covers editors
// that replace the file via rename.
func (l *MappingLoader) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating mapping watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching mapping directory %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case evt := <-watcher.Events:
				if filepath.Clean(evt.Name) != filepath.Clean(l.path) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					l.log.WithField("path", l.path).Info("Section mapping changed, reloading")
					l.reload()
				}
			case err := <-watcher.Errors:
				l.log.WithError(err).Warn("Section mapping watcher error")
			}
		}
	}()

	return nil
}
