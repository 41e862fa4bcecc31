package services

import (
	"naftapp/internal/models"
)

// Identity is the authenticated caller resolved by the session gate.
type Identity struct {
	UserID uint        `json:"user_id"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

func IdentityOf(u *models.User) *Identity {
	if u == nil {
		return nil
	}
	return &Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// requireIdentity fails fast for anonymous callers on mutating operations.
func requireIdentity(id *Identity) error {
	if id == nil || id.UserID == 0 {
		return ErrUnauthenticated()
	}
	return nil
}

// viewerID returns 0 for anonymous viewers.
func viewerID(id *Identity) uint {
	if id == nil {
		return 0
	}
	return id.UserID
}

func requireUser(userID uint) error {
	if userID == 0 {
		return ErrUnauthenticated()
	}
	return nil
}
