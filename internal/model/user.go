package model

import "time"

// User is an authenticated actor. Matching itself is unauthenticated; users
// matter only for mutations that require ownership checks.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	OrganizationID int64     `json:"organization_id,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
}

// CanMutate reports whether the user may mutate a resource owned by ownerID.
func (u *User) CanMutate(ownerID int64) bool {
	return u.IsAdmin || u.ID == ownerID
}
