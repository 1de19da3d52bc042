// Package permissions renders authorization checks as SQL predicates so that
// they can be joined into the same statement that fetches catalog rows.
// Filtering happens before LIMIT/OFFSET, never in memory afterwards.
package permissions

import (
	"strings"

	"github.com/dmitrijs2005/objcatalog/internal/dbx"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
)

// GrantLookup reports whether userID holds code on the given object or bucket
// (exactly one of the two ids is set).
type GrantLookup func(userID, objectID, bucketID string, code models.PermissionCode) bool

// Predicate is a boolean restriction over the object table. A nil *Predicate
// means "unrestricted".
type Predicate struct {
	sql   func(args *dbx.Args, obj string) string
	match func(o *models.Object, lookup GrantLookup) bool
}

// SQL renders the predicate over the object table aliased as obj,
// registering its arguments in args.
func (p *Predicate) SQL(args *dbx.Args, obj string) string {
	return p.sql(args, obj)
}

// Match evaluates the predicate against a loaded object. It is used by
// stores that cannot push the predicate down into SQL.
func (p *Predicate) Match(o *models.Object, lookup GrantLookup) bool {
	if p == nil {
		return true
	}
	return p.match(o, lookup)
}

// HasPermission restricts rows to objects on which userID holds code, either
// directly on the object or through the object's bucket.
func HasPermission(userID string, code models.PermissionCode) *Predicate {
	return &Predicate{
		sql: func(args *dbx.Args, obj string) string {
			u := args.Add(userID)
			c := args.Add(string(code))
			return "(EXISTS (SELECT 1 FROM permission p WHERE p.object_id = " + obj + ".id AND p.user_id = " + u + " AND p.code = " + c + ")" +
				" OR EXISTS (SELECT 1 FROM permission p WHERE p.bucket_id = " + obj + ".bucket_id AND p.user_id = " + u + " AND p.code = " + c + "))"
		},
		match: func(o *models.Object, lookup GrantLookup) bool {
			if lookup(userID, o.ID, "", code) {
				return true
			}
			return o.BucketID != "" && lookup(userID, "", o.BucketID, code)
		},
	}
}

// PublicOnly restricts rows to public objects.
func PublicOnly() *Predicate {
	return &Predicate{
		sql:   func(_ *dbx.Args, obj string) string { return obj + ".public = TRUE" },
		match: func(o *models.Object, _ GrantLookup) bool { return o.Public },
	}
}

// Never matches no row.
func Never() *Predicate {
	return &Predicate{
		sql:   func(_ *dbx.Args, _ string) string { return "FALSE" },
		match: func(_ *models.Object, _ GrantLookup) bool { return false },
	}
}

// Or combines predicates; a nil operand makes the whole expression
// unrestricted.
func Or(ps ...*Predicate) *Predicate {
	for _, p := range ps {
		if p == nil {
			return nil
		}
	}
	return &Predicate{
		sql: func(args *dbx.Args, obj string) string {
			parts := make([]string, len(ps))
			for i, p := range ps {
				parts[i] = p.SQL(args, obj)
			}
			return "(" + strings.Join(parts, " OR ") + ")"
		},
		match: func(o *models.Object, lookup GrantLookup) bool {
			for _, p := range ps {
				if p.match(o, lookup) {
					return true
				}
			}
			return false
		},
	}
}

// ForPrincipal picks the predicate a principal's reads run under. The system
// principal is unrestricted, an anonymous one sees only public objects, and
// any other user sees public objects (for READ) plus whatever its grants allow.
func ForPrincipal(p models.Principal, code models.PermissionCode) *Predicate {
	switch {
	case p.System:
		return nil
	case p.Anonymous || p.UserID == "":
		if code != models.PermRead {
			return Never()
		}
		return PublicOnly()
	case code == models.PermRead:
		return Or(PublicOnly(), HasPermission(p.UserID, code))
	default:
		return HasPermission(p.UserID, code)
	}
}

// Render returns " AND <predicate>" for use after an existing WHERE clause,
// or "" for a nil predicate.
func Render(p *Predicate, args *dbx.Args, obj string) string {
	if p == nil {
		return ""
	}
	return " AND " + p.SQL(args, obj)
}
