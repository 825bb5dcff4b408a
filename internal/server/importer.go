package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"mathemelody/pkg/models"
)

// startImportWatcher initializes the fsnotify watcher on the import
// directory and runs an initial scan so files dropped while the server
// was down are still picked up.
func (s *Server) startImportWatcher() error {
	if s.config.Import.Owner == "" {
		return fmt.Errorf("import is enabled but [import].owner is empty")
	}
	if err := os.MkdirAll(s.config.Import.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create import directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	go s.watchImportDir()

	if err := watcher.Add(s.config.Import.Dir); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"import_dir": s.config.Import.Dir,
		"owner":      s.config.Import.Owner,
	}).Info("Import watcher started")

	go s.scanImportDir()
	return nil
}

// watchImportDir selects on watcher channels and dispatches events.
func (s *Server) watchImportDir() {
	defer s.watcher.Close()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleImportEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("Import watcher error")
		}
	}
}

// handleImportEvent filters events down to freshly written composition files.
func (s *Server) handleImportEvent(event fsnotify.Event) {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}
	if !strings.HasSuffix(fileName, ".json") {
		return
	}

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		// Dispatch asynchronously with a settle delay so we do not
		// read a file the producer is still writing.
		go func(name string) {
			time.Sleep(500 * time.Millisecond)
			s.importCompositionFile(name)
		}(event.Name)
	}
}

// scanImportDir imports any composition files already present at startup.
func (s *Server) scanImportDir() {
	entries, err := os.ReadDir(s.config.Import.Dir)
	if err != nil {
		s.logger.WithError(err).Error("Failed to scan import directory")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		s.importCompositionFile(filepath.Join(s.config.Import.Dir, name))
	}
}

// importCompositionFile reads, validates and stores one dropped file,
// then renames it so it is not imported twice.
func (s *Server) importCompositionFile(path string) {
	log := s.logger.WithField("file_path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already renamed by a concurrent event for the same file.
			return
		}
		log.WithError(err).Error("Failed to read import file")
		return
	}

	var doc models.CompositionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		log.WithError(err).Error("Import file is not valid JSON")
		return
	}
	if verr := validateImportDoc(doc); verr != nil {
		log.WithFields(logrus.Fields{
			"field":  verr.Field,
			"reason": verr.Message,
		}).Error("Import file failed validation")
		return
	}

	owner, err := s.db.GetUserByUsername(s.config.Import.Owner)
	if err != nil {
		log.WithError(err).WithField("owner", s.config.Import.Owner).Error("Import owner not found")
		return
	}

	comp := &models.Composition{
		OwnerID:     owner.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Equations:   doc.Equations,
		Settings:    doc.Settings,
		Public:      doc.Public,
	}
	id, err := s.db.InsertComposition(comp)
	if err != nil {
		log.WithError(err).Error("Failed to store imported composition")
		return
	}
	s.gallery.Invalidate()

	if err := os.Rename(path, path+".imported"); err != nil {
		log.WithError(err).Error("Failed to rename imported file")
	}

	log.WithFields(logrus.Fields{
		"id":    id,
		"title": doc.Title,
		"owner": owner.Username,
	}).Info("Imported composition")
}

// validateImportDoc applies the same rules as the create endpoint.
func validateImportDoc(doc models.CompositionFile) *ValidationError {
	if verr := validateTitle(doc.Title); verr != nil {
		return verr
	}
	if verr := validateDescription(doc.Description); verr != nil {
		return verr
	}
	if verr := validateEquations(doc.Equations); verr != nil {
		return verr
	}
	return validateSettings(doc.Settings)
}

// stopImportWatcher closes the watcher (idempotent).
func (s *Server) stopImportWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
