// Package authz decides who may mutate articles and comments.
// Ownership is the only rule: no roles, no admin override.
package authz

import "errors"

// ErrForbidden is returned when the actor does not own the resource.
var ErrForbidden = errors.New("forbidden")

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize allows the action only when actorID owns the resource.
// An empty actor or owner id is always denied.
func Authorize(actorID, ownerID string) Decision {
	if actorID == "" || ownerID == "" || actorID != ownerID {
		return Deny
	}
	return Allow
}

// Owned is implemented by resources that have a single owning user.
type Owned interface {
	OwnerID() string
}

// Check returns ErrForbidden unless actorID owns res.
func Check(actorID string, res Owned) error {
	if Authorize(actorID, res.OwnerID()) != Allow {
		return ErrForbidden
	}
	return nil
}
