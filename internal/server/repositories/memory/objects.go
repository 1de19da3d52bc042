package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/dmitrijs2005/objcatalog/internal/server/permissions"
)

type objectRepo struct{ s *Store }

func (r objectRepo) Create(_ context.Context, obj *models.Object) (*models.Object, error) {
	defer r.s.lock("objects.Create")()
	for _, o := range r.s.objects {
		if o.ID == obj.ID || (o.Active && obj.Active && o.BucketID == obj.BucketID && o.Path == obj.Path) {
			return nil, fmt.Errorf("db error: duplicate object %s", obj.Path)
		}
	}
	obj.CreatedAt = r.s.stamp(obj.CreatedAt)
	cp := *obj
	r.s.objects[obj.ID] = &cp
	return obj, nil
}

func (r objectRepo) Get(_ context.Context, id string) (*models.Object, error) {
	defer r.s.lock("objects.Get")()
	o, ok := r.s.objects[id]
	if !ok {
		return nil, &common.NotFoundError{Resource: "object", ID: id}
	}
	cp := *o
	return &cp, nil
}

func (r objectRepo) GetByPath(_ context.Context, bucketID, path string) (*models.Object, error) {
	defer r.s.lock("objects.GetByPath")()
	for _, o := range r.s.objects {
		if o.Active && o.BucketID == bucketID && o.Path == path {
			cp := *o
			return &cp, nil
		}
	}
	return nil, &common.NotFoundError{Resource: "object", ID: path}
}

func (r objectRepo) Search(_ context.Context, f models.ObjectFilter, restrict *permissions.Predicate) ([]*models.Object, error) {
	defer r.s.lock("objects.Search")()
	active := true
	if f.Active != nil {
		active = *f.Active
	}

	var out []*models.Object
	for _, o := range r.s.objects {
		switch {
		case len(f.IDs) > 0 && !contains(f.IDs, o.ID),
			len(f.BucketIDs) > 0 && !contains(f.BucketIDs, o.BucketID),
			f.Path != "" && !strings.Contains(strings.ToLower(o.Path), strings.ToLower(f.Path)),
			f.Public != nil && o.Public != *f.Public,
			o.Active != active,
			!restrict.Match(o, r.s.hasGrant):
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r objectRepo) Allowed(_ context.Context, id string, restrict *permissions.Predicate) (bool, error) {
	defer r.s.lock("objects.Allowed")()
	o, ok := r.s.objects[id]
	if !ok {
		return false, nil
	}
	return restrict.Match(o, r.s.hasGrant), nil
}

func (r objectRepo) SetPublic(_ context.Context, id string, public bool, actorID string) (*models.Object, error) {
	defer r.s.lock("objects.SetPublic")()
	o, ok := r.s.objects[id]
	if !ok {
		return nil, &common.NotFoundError{Resource: "object", ID: id}
	}
	o.Public = public
	o.UpdatedBy = actorID
	o.UpdatedAt = r.s.Now()
	cp := *o
	return &cp, nil
}

func (r objectRepo) SetActive(_ context.Context, id string, active bool, actorID string) error {
	defer r.s.lock("objects.SetActive")()
	o, ok := r.s.objects[id]
	if !ok {
		return &common.NotFoundError{Resource: "object", ID: id}
	}
	o.Active = active
	o.UpdatedBy = actorID
	o.UpdatedAt = r.s.Now()
	return nil
}

// deleteObject applies the cascade of the object foreign keys. The caller
// holds s.mu.
func (s *Store) deleteObject(id string) {
	delete(s.objects, id)
	for vid, v := range s.versions {
		if v.ObjectID == id {
			s.deleteVersion(vid)
		}
	}
	kept := s.permissions[:0]
	for _, p := range s.permissions {
		if p.ObjectID != id {
			kept = append(kept, p)
		}
	}
	s.permissions = kept
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
