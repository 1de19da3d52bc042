package models

import "time"

// SystemUserID is the well-known id of the bootstrap system identity. It owns
// system-attributed writes and has no identity provider.
const SystemUserID = "00000000-0000-0000-0000-000000000000"

// User is the durable local record of an external identity.
type User struct {
	UserID     string
	IdentityID string
	IDP        string
	Username   string
	FullName   string
	FirstName  string
	LastName   string
	Email      string
	Active     bool
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedBy  string
	UpdatedAt  time.Time
}

// IdentityProvider is a known idp code.
type IdentityProvider struct {
	IDP       string
	Display   string
	Active    bool
	CreatedBy string
}

// Principal is the caller an operation runs as. It is passed explicitly
// through service signatures; there is no ambient current user.
type Principal struct {
	UserID    string
	System    bool
	Anonymous bool
}

// SystemPrincipal returns the bootstrap identity used for system writes.
func SystemPrincipal() Principal {
	return Principal{UserID: SystemUserID, System: true}
}

// AnonymousPrincipal is used when no authenticated identity is present; it
// may only see public objects.
func AnonymousPrincipal() Principal {
	return Principal{Anonymous: true}
}

// ActorID is the id written into audit columns.
func (p Principal) ActorID() string {
	if p.UserID == "" {
		return SystemUserID
	}
	return p.UserID
}

// IdentityClaims is the subset of an identity-provider assertion mapped onto
// a local user.
type IdentityClaims struct {
	IdentityID string
	IDP        string
	Username   string
	FullName   string
	FirstName  string
	LastName   string
	Email      string
}

// UserPatch carries only the fields to change. Nil means unchanged.
type UserPatch struct {
	IDP       *string
	Username  *string
	FullName  *string
	FirstName *string
	LastName  *string
	Email     *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.IDP == nil && p.Username == nil && p.FullName == nil &&
		p.FirstName == nil && p.LastName == nil && p.Email == nil
}
