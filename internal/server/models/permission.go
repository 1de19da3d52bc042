package models

import "time"

// PermissionCode names an action a grant allows.
type PermissionCode string

const (
	PermCreate PermissionCode = "CREATE"
	PermRead   PermissionCode = "READ"
	PermUpdate PermissionCode = "UPDATE"
	PermDelete PermissionCode = "DELETE"
	PermManage PermissionCode = "MANAGE"
)

// AllPermissionCodes lists every code, in the order owners receive them.
var AllPermissionCodes = []PermissionCode{PermCreate, PermRead, PermUpdate, PermDelete, PermManage}

func (c PermissionCode) Valid() bool {
	switch c {
	case PermCreate, PermRead, PermUpdate, PermDelete, PermManage:
		return true
	}
	return false
}

// Permission grants Code to UserID over exactly one of ObjectID or BucketID.
type Permission struct {
	ID        string
	UserID    string
	ObjectID  string
	BucketID  string
	Code      PermissionCode
	CreatedBy string
	CreatedAt time.Time
}

// PermissionScope selects the object or the bucket a grant applies to.
type PermissionScope struct {
	ObjectID string
	BucketID string
}

// Grant is one (user, code) pair to add under a scope.
type Grant struct {
	UserID string
	Code   PermissionCode
}
