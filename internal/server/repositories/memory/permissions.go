package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type permissionRepo struct{ s *Store }

func (r permissionRepo) Add(_ context.Context, p *models.Permission) (bool, error) {
	defer r.s.lock("permissions.Add")()
	for _, e := range r.s.permissions {
		if e.UserID == p.UserID && e.ObjectID == p.ObjectID && e.BucketID == p.BucketID && e.Code == p.Code {
			return false, nil
		}
	}
	p.CreatedAt = r.s.stamp(p.CreatedAt)
	cp := *p
	r.s.permissions = append(r.s.permissions, &cp)
	return true, nil
}

func (r permissionRepo) Remove(_ context.Context, scope models.PermissionScope, userIDs []string, codes []models.PermissionCode) (int64, error) {
	defer r.s.lock("permissions.Remove")()
	var n int64
	kept := r.s.permissions[:0]
	for _, p := range r.s.permissions {
		inScope := (scope.ObjectID != "" && p.ObjectID == scope.ObjectID) ||
			(scope.ObjectID == "" && p.BucketID == scope.BucketID && p.BucketID != "")
		if inScope && (len(userIDs) == 0 || contains(userIDs, p.UserID)) && (len(codes) == 0 || hasCode(codes, p.Code)) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.s.permissions = kept
	return n, nil
}

func (r permissionRepo) Search(_ context.Context, f models.PermissionFilter) ([]*models.Permission, error) {
	defer r.s.lock("permissions.Search")()
	var out []*models.Permission
	for _, p := range r.s.permissions {
		switch {
		case f.ObjectPerms && p.ObjectID == "",
			!f.ObjectPerms && p.BucketID == "",
			len(f.UserIDs) > 0 && !contains(f.UserIDs, p.UserID),
			len(f.ObjectIDs) > 0 && !contains(f.ObjectIDs, p.ObjectID),
			len(f.BucketIDs) > 0 && !contains(f.BucketIDs, p.BucketID),
			len(f.Codes) > 0 && !hasCode(f.Codes, p.Code):
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r permissionRepo) Exists(_ context.Context, userID, objectID string, code models.PermissionCode) (bool, error) {
	defer r.s.lock("permissions.Exists")()
	o, ok := r.s.objects[objectID]
	if !ok {
		return false, nil
	}
	return r.s.hasGrant(userID, o.ID, "", code) || (o.BucketID != "" && r.s.hasGrant(userID, "", o.BucketID, code)), nil
}

func hasCode(codes []models.PermissionCode, c models.PermissionCode) bool {
	for _, x := range codes {
		if x == c {
			return true
		}
	}
	return false
}
