package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	"github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

// Store is the identity mapping store contract. Lookups are non-blocking
// reads against the current index snapshot; Load and Save are serialized
// with respect to each other.
type Store interface {
	Load() error
	Save(doc domain.MappingDocument) error
	LookupByProductID(productID string) (string, bool)
	LookupByOfferID(offerID string) (string, bool)
	ProductIDs() []string
	Count() int
	LoadedAt() time.Time
	Document() domain.MappingDocument
}

// index is an immutable bidirectional snapshot swapped in atomically on
// every successful load or save.
type index struct {
	doc       domain.MappingDocument
	byProduct map[string]string
	byOffer   map[string]string
	loadedAt  time.Time
}

// FileStore persists the mapping document as a JSON file. Every write is
// preceded by a timestamped backup copy and performed as temp-file + rename
// so the document is never left partially written.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex // serializes Load/Save
	idx atomic.Pointer[index]
}

// NewFileStore creates a file-backed mapping store. Call Load before
// serving lookups.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Load reads and validates the persisted document, then swaps the
// in-memory index. On any failure the previous index is retained, so a bad
// reload never leaves a running process with zero mappings.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return &errors.ErrMappingLoad{Path: s.path, Reason: "read failed", Err: err}
	}

	var doc domain.MappingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return &errors.ErrMappingLoad{Path: s.path, Reason: "malformed document", Err: err}
	}

	byProduct, byOffer, err := buildIndex(doc.Mappings)
	if err != nil {
		return &errors.ErrMappingLoad{Path: s.path, Reason: err.Error()}
	}

	s.idx.Store(&index{
		doc:       doc,
		byProduct: byProduct,
		byOffer:   byOffer,
		loadedAt:  time.Now(),
	})

	s.logger.Info("Mapping document loaded",
		zap.String("path", s.path),
		zap.Int("version", doc.Version),
		zap.Int("mappings", len(doc.Mappings)),
	)
	return nil
}

// Save validates the new document, backs up the current file, then
// atomically replaces it and swaps the in-memory index.
func (s *FileStore) Save(doc domain.MappingDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byProduct, byOffer, err := buildIndex(doc.Mappings)
	if err != nil {
		return &errors.ErrMappingWrite{Path: s.path, Err: err}
	}

	doc.LastUpdated = time.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &errors.ErrMappingWrite{Path: s.path, Err: err}
	}

	if err := s.backupCurrent(); err != nil {
		return &errors.ErrMappingWrite{Path: s.path, Err: err}
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return &errors.ErrMappingWrite{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &errors.ErrMappingWrite{Path: s.path, Err: err}
	}

	s.idx.Store(&index{
		doc:       doc,
		byProduct: byProduct,
		byOffer:   byOffer,
		loadedAt:  time.Now(),
	})

	s.logger.Info("Mapping document saved",
		zap.String("path", s.path),
		zap.Int("version", doc.Version),
		zap.Int("mappings", len(doc.Mappings)),
	)
	return nil
}

// backupCurrent copies the existing document to a timestamped sibling.
// Backups are retained; cleanup is an operational concern.
func (s *FileStore) backupCurrent() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // first save, nothing to back up
		}
		return err
	}
	backupPath := fmt.Sprintf("%s.%s.bak", s.path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return err
	}
	s.logger.Debug("Mapping document backed up", zap.String("backup", filepath.Base(backupPath)))
	return nil
}

// LookupByProductID returns the offer code mapped to an internal product id.
func (s *FileStore) LookupByProductID(productID string) (string, bool) {
	idx := s.idx.Load()
	if idx == nil {
		return "", false
	}
	offerID, ok := idx.byProduct[productID]
	return offerID, ok
}

// LookupByOfferID returns the internal product id mapped to an offer code.
func (s *FileStore) LookupByOfferID(offerID string) (string, bool) {
	idx := s.idx.Load()
	if idx == nil {
		return "", false
	}
	productID, ok := idx.byOffer[offerID]
	return productID, ok
}

// ProductIDs returns all mapped internal product ids in document order.
func (s *FileStore) ProductIDs() []string {
	idx := s.idx.Load()
	if idx == nil {
		return nil
	}
	ids := make([]string, 0, len(idx.doc.Mappings))
	for _, m := range idx.doc.Mappings {
		ids = append(ids, m.ProductID)
	}
	return ids
}

// Count returns the number of loaded mappings.
func (s *FileStore) Count() int {
	idx := s.idx.Load()
	if idx == nil {
		return 0
	}
	return len(idx.doc.Mappings)
}

// LoadedAt returns when the current index was installed; zero when nothing
// has been loaded yet.
func (s *FileStore) LoadedAt() time.Time {
	idx := s.idx.Load()
	if idx == nil {
		return time.Time{}
	}
	return idx.loadedAt
}

// Document returns a copy of the currently loaded document for
// read-modify-write flows.
func (s *FileStore) Document() domain.MappingDocument {
	idx := s.idx.Load()
	if idx == nil {
		return domain.MappingDocument{}
	}
	doc := idx.doc
	doc.Mappings = make([]domain.ProductMapping, len(idx.doc.Mappings))
	copy(doc.Mappings, idx.doc.Mappings)
	return doc
}

// buildIndex validates uniqueness in both directions and builds the lookup
// maps. Duplicates are reported, never silently resolved.
func buildIndex(mappings []domain.ProductMapping) (map[string]string, map[string]string, error) {
	byProduct := make(map[string]string, len(mappings))
	byOffer := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.ProductID == "" || m.OfferID == "" {
			return nil, nil, fmt.Errorf("mapping with empty product_id or offer_id")
		}
		if _, exists := byProduct[m.ProductID]; exists {
			return nil, nil, fmt.Errorf("duplicate product_id %s", m.ProductID)
		}
		if _, exists := byOffer[m.OfferID]; exists {
			return nil, nil, fmt.Errorf("duplicate offer_id %s", m.OfferID)
		}
		byProduct[m.ProductID] = m.OfferID
		byOffer[m.OfferID] = m.ProductID
	}
	return byProduct, byOffer, nil
}
