package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type versionRepo struct{ s *Store }

func (r versionRepo) Create(_ context.Context, v *models.Version) (*models.Version, error) {
	defer r.s.lock("versions.Create")()
	if _, ok := r.s.objects[v.ObjectID]; !ok {
		return nil, fmt.Errorf("db error: object %s does not exist", v.ObjectID)
	}
	for _, o := range r.s.versions {
		if o.ID == v.ID {
			return nil, fmt.Errorf("db error: duplicate version %s", v.ID)
		}
		if v.S3VersionID != "" && o.ObjectID == v.ObjectID && o.S3VersionID == v.S3VersionID {
			return nil, fmt.Errorf("db error: duplicate s3 version %s", v.S3VersionID)
		}
	}
	r.s.seq++
	v.Seq = r.s.seq
	v.CreatedAt = r.s.stamp(v.CreatedAt)
	cp := *v
	r.s.versions[v.ID] = &cp
	return v, nil
}

func (r versionRepo) Get(_ context.Context, id string) (*models.Version, error) {
	defer r.s.lock("versions.Get")()
	v, ok := r.s.versions[id]
	if !ok {
		return nil, &common.NotFoundError{Resource: "version", ID: id}
	}
	cp := *v
	return &cp, nil
}

func (r versionRepo) GetByS3VersionID(_ context.Context, objectID, s3VersionID string) (*models.Version, error) {
	defer r.s.lock("versions.GetByS3VersionID")()
	for _, v := range r.s.versions {
		if v.ObjectID == objectID && v.S3VersionID == s3VersionID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, &common.NotFoundError{Resource: "version", ID: s3VersionID}
}

func (r versionRepo) ListByObject(_ context.Context, objectID string) ([]*models.Version, error) {
	defer r.s.lock("versions.ListByObject")()
	return r.s.versionsOf(objectID, true), nil
}

func (r versionRepo) Latest(_ context.Context, objectID string) (*models.Version, error) {
	defer r.s.lock("versions.Latest")()
	if v := r.s.latest(objectID); v != nil {
		return v, nil
	}
	return nil, &common.NotFoundError{Resource: "current version of object", ID: objectID}
}

func (r versionRepo) LatestForObjects(_ context.Context, objectIDs []string) (map[string]*models.Version, error) {
	defer r.s.lock("versions.LatestForObjects")()
	out := make(map[string]*models.Version, len(objectIDs))
	for _, id := range objectIDs {
		if v := r.s.latest(id); v != nil {
			out[id] = v
		}
	}
	return out, nil
}

func (r versionRepo) ReplaceContent(_ context.Context, v *models.Version) (*models.Version, error) {
	defer r.s.lock("versions.ReplaceContent")()
	cur := r.s.latest(v.ObjectID)
	if cur == nil {
		return nil, &common.NotFoundError{Resource: "content version of object", ID: v.ObjectID}
	}
	row := r.s.versions[cur.ID]
	row.S3VersionID = v.S3VersionID
	row.MimeType = v.MimeType
	row.OriginalName = v.OriginalName
	row.ETag = v.ETag
	row.UpdatedBy = v.UpdatedBy
	row.UpdatedAt = r.s.Now()
	cp := *row
	return &cp, nil
}

func (r versionRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock("versions.Delete")()
	if _, ok := r.s.versions[id]; !ok {
		return &common.NotFoundError{Resource: "version", ID: id}
	}
	r.s.deleteVersion(id)
	return nil
}

// versionsOf returns copies ordered newest first (created_at, then seq).
func (s *Store) versionsOf(objectID string, withMarkers bool) []*models.Version {
	var out []*models.Version
	for _, v := range s.versions {
		if v.ObjectID != objectID || (!withMarkers && v.DeleteMarker) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

func (s *Store) latest(objectID string) *models.Version {
	list := s.versionsOf(objectID, false)
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// deleteVersion cascades to the version's metadata joins. The caller holds
// s.mu.
func (s *Store) deleteVersion(id string) {
	delete(s.versions, id)
	for k := range s.joins {
		if k.versionID == id {
			delete(s.joins, k)
		}
	}
}
