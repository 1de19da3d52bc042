package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type metadataRepo struct{ s *Store }

func (r metadataRepo) FindOrCreate(_ context.Context, key, value string) (int64, error) {
	defer r.s.lock("metadata.FindOrCreate")()
	for _, m := range r.s.metadata {
		if m.Key == key && m.Value == value {
			return m.ID, nil
		}
	}
	r.s.metaSeq++
	r.s.metadata[r.s.metaSeq] = &models.Metadata{ID: r.s.metaSeq, Key: key, Value: value}
	return r.s.metaSeq, nil
}

func (r metadataRepo) ListForVersion(ctx context.Context, versionID string) ([]models.VersionMetadata, error) {
	return r.ListForVersions(ctx, []string{versionID})
}

func (r metadataRepo) ListForVersions(_ context.Context, versionIDs []string) ([]models.VersionMetadata, error) {
	defer r.s.lock("metadata.ListForVersions")()
	var out []models.VersionMetadata
	for k, createdBy := range r.s.joins {
		if !contains(versionIDs, k.versionID) {
			continue
		}
		m := r.s.metadata[k.metadataID]
		out = append(out, models.VersionMetadata{
			VersionID: k.versionID, MetadataID: k.metadataID, Key: m.Key, Value: m.Value, CreatedBy: createdBy,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VersionID != b.VersionID {
			return a.VersionID < b.VersionID
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Value < b.Value
	})
	return out, nil
}

func (r metadataRepo) Associate(_ context.Context, versionID string, metadataIDs []int64, actorID string) error {
	defer r.s.lock("metadata.Associate")()
	for _, id := range metadataIDs {
		k := joinKey{versionID, id}
		if _, ok := r.s.joins[k]; !ok {
			r.s.joins[k] = actorID
		}
	}
	return nil
}

func (r metadataRepo) Dissociate(_ context.Context, versionID string, metadataIDs []int64) (int64, error) {
	defer r.s.lock("metadata.Dissociate")()
	var n int64
	for _, id := range metadataIDs {
		k := joinKey{versionID, id}
		if _, ok := r.s.joins[k]; ok {
			delete(r.s.joins, k)
			n++
		}
	}
	return n, nil
}

func (r metadataRepo) PruneOrphans(_ context.Context) (int64, error) {
	defer r.s.lock("metadata.PruneOrphans")()
	used := map[int64]bool{}
	for k := range r.s.joins {
		used[k.metadataID] = true
	}
	var n int64
	for id := range r.s.metadata {
		if !used[id] {
			delete(r.s.metadata, id)
			n++
		}
	}
	return n, nil
}
