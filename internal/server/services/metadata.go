package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/logging"
	"github.com/dmitrijs2005/objcatalog/internal/server/metrics"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/repositories/repomanager"
)

// MetadataService keeps each version's metadata joins equal to the last set
// it was given, and removes metadata rows nothing references any more.
type MetadataService struct {
	db          DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewMetadataService(db DB, m repomanager.RepositoryManager, logger logging.Logger) *MetadataService {
	return &MetadataService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "metadata"),
	}
}

// AssociateMetadata makes the metadata of versionID exactly set. An empty
// set dissociates everything. Pairs already joined are left alone, so
// repeating a call is a no-op. Orphans left by removed joins are pruned in
// the same transaction, after the new joins are written.
func (s *MetadataService) AssociateMetadata(ctx context.Context, tx dbx.DBTX, versionID string, set []models.Metadata, actorID string) error {
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Metadata(tx)

		target := make(map[int64]bool, len(set))
		var order []int64
		for _, m := range set {
			id, err := repo.FindOrCreate(ctx, m.Key, m.Value)
			if err != nil {
				return fmt.Errorf("error resolving metadata %q: %w", m.Key, err)
			}
			if !target[id] {
				target[id] = true
				order = append(order, id)
			}
		}

		current, err := repo.ListForVersion(ctx, versionID)
		if err != nil {
			return fmt.Errorf("error loading metadata: %w", err)
		}
		have := make(map[int64]bool, len(current))
		var toRemove []int64
		for _, c := range current {
			have[c.MetadataID] = true
			if !target[c.MetadataID] {
				toRemove = append(toRemove, c.MetadataID)
			}
		}
		var toAdd []int64
		for _, id := range order {
			if !have[id] {
				toAdd = append(toAdd, id)
			}
		}

		var removed int64
		if len(toRemove) > 0 {
			removed, err = repo.Dissociate(ctx, versionID, toRemove)
			if err != nil {
				return fmt.Errorf("error removing metadata: %w", err)
			}
		}
		if len(toAdd) > 0 {
			if err := repo.Associate(ctx, versionID, toAdd, actorID); err != nil {
				return fmt.Errorf("error adding metadata: %w", err)
			}
		}
		if removed > 0 {
			if _, err := s.prune(ctx, tx); err != nil {
				return err
			}
		}

		metrics.MetadataJoinsTotal.WithLabelValues("added").Add(float64(len(toAdd)))
		metrics.MetadataJoinsTotal.WithLabelValues("removed").Add(float64(removed))
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "associate metadata failed", "version_id", versionID, "error", err)
		return err
	}
	return nil
}

// PruneOrphanedMetadata deletes metadata rows with no version referencing
// them.
func (s *MetadataService) PruneOrphanedMetadata(ctx context.Context, tx dbx.DBTX) (int64, error) {
	var n int64
	err := dbx.InTx(ctx, s.db, tx, func(ctx context.Context, tx dbx.DBTX) (err error) {
		n, err = s.prune(ctx, tx)
		return err
	})
	return n, err
}

func (s *MetadataService) prune(ctx context.Context, tx dbx.DBTX) (int64, error) {
	n, err := s.repomanager.Metadata(tx).PruneOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("error pruning metadata: %w", err)
	}
	if n > 0 {
		metrics.MetadataPrunedTotal.Add(float64(n))
		s.logger.Debug(ctx, "pruned orphaned metadata", "count", n)
	}
	return n, nil
}

// FetchMetadata returns the joined metadata of the given versions as a flat
// list ordered by version, key and value.
func (s *MetadataService) FetchMetadata(ctx context.Context, versionIDs []string) ([]models.VersionMetadata, error) {
	if len(versionIDs) == 0 {
		return nil, nil
	}
	return s.repomanager.Metadata(s.db).ListForVersions(ctx, versionIDs)
}
