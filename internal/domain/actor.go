package domain

import "fmt"

// Actor identifies who drives a block transition: the engine itself or an
// authenticated admin. Modeling this as a tagged value keeps the invalid
// combination "automatic block with a human identity" unrepresentable.
type Actor struct {
	system bool
	userID uint
	email  string
	role   string
}

// SystemActor is the engine acting on a policy decision.
func SystemActor() Actor {
	return Actor{system: true}
}

// UserActor is an authenticated admin identified by JWT claims.
func UserActor(userID uint, email, role string) Actor {
	return Actor{userID: userID, email: email, role: role}
}

func (a Actor) IsSystem() bool { return a.system }

// UserID returns the acting user's ID, or nil for the system actor.
func (a Actor) UserID() *uint {
	if a.system {
		return nil
	}
	id := a.userID
	return &id
}

func (a Actor) Role() string {
	if a.system {
		return ""
	}
	return a.role
}

// String is the audit-trail representation.
func (a Actor) String() string {
	if a.system {
		return "system"
	}
	if a.email != "" {
		return a.email
	}
	return fmt.Sprintf("user:%d", a.userID)
}
