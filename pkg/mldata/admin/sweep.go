// Package admin provides out-of-band maintenance tooling.
//
// The sweep reports the two inconsistencies the upload and delete paths
// can leave behind: a blob written before a failed metadata insert
// (orphaned blob), and a metadata row whose blob delete succeeded but
// whose row delete failed (dangling row). The sweep only reports; an
// operator decides what to remove.
package admin

import (
	"context"
	"fmt"

	"github.com/tsi-mlops/mldata/pkg/mldata"
)

// Report lists the inconsistencies found in one store.
type Report struct {
	Store        string   `json:"store"`
	OrphanedKeys []string `json:"orphaned_keys"` // blobs with no metadata row
	DanglingKeys []string `json:"dangling_keys"` // metadata rows with no blob
}

// Sweeper compares blob store contents against repository rows.
type Sweeper struct {
	repository mldata.Repository
	stores     map[string]mldata.BlobStore
}

// NewSweeper creates a Sweeper over the given repository and stores.
// The stores map is keyed by store name, matching the service wiring.
func NewSweeper(repository mldata.Repository, stores map[string]mldata.BlobStore) *Sweeper {
	return &Sweeper{repository: repository, stores: stores}
}

// Sweep reconciles every configured store and returns one report per
// store. It reads both sides without taking locks, so an upload or
// delete racing the sweep can appear as a transient inconsistency;
// operators should confirm a finding persists before acting on it.
func (s *Sweeper) Sweep(ctx context.Context) ([]Report, error) {
	var reports []Report

	for name, store := range s.stores {
		expected, err := s.expectedKeys(ctx, name)
		if err != nil {
			return nil, err
		}

		actual, err := store.ListKeys(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list store %q: %w", name, err)
		}

		report := Report{Store: name}

		actualSet := make(map[string]bool, len(actual))
		for _, key := range actual {
			actualSet[key] = true
			if !expected[key] {
				report.OrphanedKeys = append(report.OrphanedKeys, key)
			}
		}
		for key := range expected {
			if !actualSet[key] {
				report.DanglingKeys = append(report.DanglingKeys, key)
			}
		}

		reports = append(reports, report)
	}

	return reports, nil
}

func (s *Sweeper) expectedKeys(ctx context.Context, store string) (map[string]bool, error) {
	keys := make(map[string]bool)

	switch store {
	case mldata.StoreDataset:
		objects, err := s.repository.ListDatasetObjects(ctx, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list dataset objects: %w", err)
		}
		for _, obj := range objects {
			keys[obj.ObjectKey] = true
		}
	case mldata.StoreModels:
		objects, err := s.repository.ListModelObjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list model objects: %w", err)
		}
		for _, obj := range objects {
			keys[obj.ObjectKey] = true
		}
	default:
		return nil, fmt.Errorf("unknown store %q", store)
	}

	return keys, nil
}
