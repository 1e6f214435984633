package mapping

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Krucheverba/m2-middleware-sub001/internal/domain"
	apperrors "github.com/Krucheverba/m2-middleware-sub001/pkg/errors"
)

func writeDocument(t *testing.T, path string, doc domain.MappingDocument) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func validDocument() domain.MappingDocument {
	return domain.MappingDocument{
		Version:     1,
		LastUpdated: time.Now(),
		Mappings: []domain.ProductMapping{
			{ProductID: "prod-1", OfferID: "OFF-100"},
			{ProductID: "prod-2", OfferID: "OFF-200"},
			{ProductID: "prod-3", OfferID: "OFF-300"},
		},
	}
}

func TestFileStore_LoadAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	writeDocument(t, path, validDocument())

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load())

	assert.Equal(t, 3, store.Count())
	assert.False(t, store.LoadedAt().IsZero())

	offerID, ok := store.LookupByProductID("prod-2")
	assert.True(t, ok)
	assert.Equal(t, "OFF-200", offerID)

	productID, ok := store.LookupByOfferID("OFF-300")
	assert.True(t, ok)
	assert.Equal(t, "prod-3", productID)

	_, ok = store.LookupByProductID("prod-unknown")
	assert.False(t, ok)
}

func TestFileStore_LookupRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	doc := validDocument()
	writeDocument(t, path, doc)

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load())

	for _, m := range doc.Mappings {
		productID, ok := store.LookupByOfferID(m.OfferID)
		require.True(t, ok)
		offerID, ok := store.LookupByProductID(productID)
		require.True(t, ok)
		assert.Equal(t, m.OfferID, offerID)
	}
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())

	err := store.Load()
	var loadErr *apperrors.ErrMappingLoad
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 0, store.Count())
}

func TestFileStore_LoadMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path, zap.NewNop())
	err := store.Load()
	var loadErr *apperrors.ErrMappingLoad
	require.ErrorAs(t, err, &loadErr)
}

func TestFileStore_DuplicateOfferIDKeepsPreviousIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	writeDocument(t, path, validDocument())

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load())

	bad := domain.MappingDocument{
		Version: 2,
		Mappings: []domain.ProductMapping{
			{ProductID: "prod-1", OfferID: "OFF-100"},
			{ProductID: "prod-2", OfferID: "OFF-100"},
		},
	}
	writeDocument(t, path, bad)

	err := store.Load()
	var loadErr *apperrors.ErrMappingLoad
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "duplicate offer_id")

	// previous index survives the failed reload
	assert.Equal(t, 3, store.Count())
	offerID, ok := store.LookupByProductID("prod-3")
	assert.True(t, ok)
	assert.Equal(t, "OFF-300", offerID)
}

func TestFileStore_DuplicateProductIDRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	writeDocument(t, path, domain.MappingDocument{
		Version: 1,
		Mappings: []domain.ProductMapping{
			{ProductID: "prod-1", OfferID: "OFF-100"},
			{ProductID: "prod-1", OfferID: "OFF-200"},
		},
	})

	store := NewFileStore(path, zap.NewNop())
	err := store.Load()
	var loadErr *apperrors.ErrMappingLoad
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Error(), "duplicate product_id")
}

func TestFileStore_SaveWritesBackupAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.json")
	writeDocument(t, path, validDocument())

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load())

	next := store.Document()
	next.Version = 2
	next.Mappings = append(next.Mappings, domain.ProductMapping{ProductID: "prod-4", OfferID: "OFF-400"})
	require.NoError(t, store.Save(next))

	// lookups reflect the saved document
	offerID, ok := store.LookupByProductID("prod-4")
	assert.True(t, ok)
	assert.Equal(t, "OFF-400", offerID)

	// exactly one timestamped backup was written
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var backups, tmp int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".bak") {
			backups++
		}
		if strings.HasSuffix(e.Name(), ".tmp") {
			tmp++
		}
	}
	assert.Equal(t, 1, backups)
	assert.Zero(t, tmp, "temp file must not remain after rename")

	// on-disk document round-trips
	reloaded := NewFileStore(path, zap.NewNop())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 4, reloaded.Count())
}

func TestFileStore_SaveRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	store := NewFileStore(path, zap.NewNop())

	err := store.Save(domain.MappingDocument{
		Version: 1,
		Mappings: []domain.ProductMapping{
			{ProductID: "prod-1", OfferID: "OFF-100"},
			{ProductID: "prod-2", OfferID: "OFF-100"},
		},
	})
	var writeErr *apperrors.ErrMappingWrite
	require.ErrorAs(t, err, &writeErr)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid document must not reach disk")
}

func TestFileStore_ProductIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	writeDocument(t, path, validDocument())

	store := NewFileStore(path, zap.NewNop())
	require.NoError(t, store.Load())

	assert.ElementsMatch(t, []string{"prod-1", "prod-2", "prod-3"}, store.ProductIDs())
}
