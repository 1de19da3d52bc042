package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	defer r.s.lock("users.Create")()
	if _, ok := r.s.users[u.UserID]; ok {
		return nil, fmt.Errorf("db error: duplicate user %s", u.UserID)
	}
	if u.IDP != "" {
		if _, ok := r.s.idps[u.IDP]; !ok {
			return nil, fmt.Errorf("db error: identity provider %s does not exist", u.IDP)
		}
	}
	u.CreatedAt = r.s.stamp(u.CreatedAt)
	cp := *u
	r.s.users[u.UserID] = &cp
	return u, nil
}

func (r userRepo) Get(_ context.Context, userID string) (*models.User, error) {
	defer r.s.lock("users.Get")()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, &common.NotFoundError{Resource: "user", ID: userID}
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByIdentityID(_ context.Context, identityID string) (*models.User, error) {
	defer r.s.lock("users.GetByIdentityID")()
	for _, u := range r.s.users {
		if u.IdentityID != "" && u.IdentityID == identityID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, &common.NotFoundError{Resource: "user", ID: identityID}
}

func (r userRepo) Update(_ context.Context, userID string, p models.UserPatch, actorID string) (*models.User, error) {
	defer r.s.lock("users.Update")()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, &common.NotFoundError{Resource: "user", ID: userID}
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.IDP, p.IDP)
	set(&u.Username, p.Username)
	set(&u.FullName, p.FullName)
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.Email, p.Email)
	u.UpdatedBy = actorID
	u.UpdatedAt = r.s.Now()
	cp := *u
	return &cp, nil
}

func (r userRepo) Search(_ context.Context, f models.UserFilter) ([]*models.User, error) {
	defer r.s.lock("users.Search")()
	var out []*models.User
	for _, u := range r.s.users {
		switch {
		case len(f.UserIDs) > 0 && !contains(f.UserIDs, u.UserID),
			len(f.IdentityIDs) > 0 && !contains(f.IdentityIDs, u.IdentityID),
			f.IDP != "" && u.IDP != f.IDP,
			f.Username != "" && !strings.Contains(strings.ToLower(u.Username), strings.ToLower(f.Username)),
			f.Email != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(f.Email)),
			f.Active != nil && u.Active != *f.Active:
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type idpRepo struct{ s *Store }

func (r idpRepo) Exists(_ context.Context, idp string) (bool, error) {
	defer r.s.lock("identityproviders.Exists")()
	_, ok := r.s.idps[idp]
	return ok, nil
}

func (r idpRepo) Create(_ context.Context, p *models.IdentityProvider) error {
	defer r.s.lock("identityproviders.Create")()
	if _, ok := r.s.idps[p.IDP]; ok {
		return nil
	}
	cp := *p
	if cp.Display == "" {
		cp.Display = cp.IDP
	}
	r.s.idps[p.IDP] = &cp
	return nil
}

// IdentityProviderCount returns the number of registered idp codes.
func (s *Store) IdentityProviderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idps)
}
