package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	memoryrepo "github.com/tsi-mlops/mldata/pkg/mldata/repo/memory"
	memorystorage "github.com/tsi-mlops/mldata/pkg/mldata/storage/memory"
)

func TestSweepFindsOrphansAndDanglers(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	datasetStore := memorystorage.New()
	modelStore := memorystorage.New()

	now := time.Now().UTC()

	// Consistent pair: row and blob both present.
	require.NoError(t, repo.CreateDatasetObject(ctx, &mldata.DatasetObject{
		ID: uuid.New(), Name: "ok.jpg", ObjectKey: "aaa-ok.jpg",
		ContentType: "image/jpeg", FileHashSHA1: "h1",
		UploadDate: now, ModifiedDate: now,
	}))
	require.NoError(t, datasetStore.Upload(ctx, "aaa-ok.jpg", strings.NewReader("data")))

	// Orphaned blob: upload succeeded, metadata insert failed.
	require.NoError(t, datasetStore.Upload(ctx, "bbb-orphan.jpg", strings.NewReader("data")))

	// Dangling row: blob delete succeeded, row delete failed.
	require.NoError(t, repo.CreateDatasetObject(ctx, &mldata.DatasetObject{
		ID: uuid.New(), Name: "gone.jpg", ObjectKey: "ccc-gone.jpg",
		ContentType: "image/jpeg", FileHashSHA1: "h2",
		UploadDate: now, ModifiedDate: now,
	}))

	sweeper := NewSweeper(repo, map[string]mldata.BlobStore{
		mldata.StoreDataset: datasetStore,
		mldata.StoreModels:  modelStore,
	})

	reports, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	byStore := make(map[string]Report)
	for _, r := range reports {
		byStore[r.Store] = r
	}

	dataset := byStore[mldata.StoreDataset]
	assert.Equal(t, []string{"bbb-orphan.jpg"}, dataset.OrphanedKeys)
	assert.Equal(t, []string{"ccc-gone.jpg"}, dataset.DanglingKeys)

	models := byStore[mldata.StoreModels]
	assert.Empty(t, models.OrphanedKeys)
	assert.Empty(t, models.DanglingKeys)
}

func TestSweepCleanState(t *testing.T) {
	ctx := context.Background()
	repo := memoryrepo.New()
	store := memorystorage.New()

	sweeper := NewSweeper(repo, map[string]mldata.BlobStore{
		mldata.StoreDataset: store,
	})

	reports, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].OrphanedKeys)
	assert.Empty(t, reports[0].DanglingKeys)
}
