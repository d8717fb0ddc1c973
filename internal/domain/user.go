package domain

import "time"

// User mirrors the submitting identity known to the external transport.
// Authorization is a yes/no gate with an admin override; the token hash is
// the bearer credential for the submit API.
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	TokenHash    string    `db:"token_hash"`
	IsAuthorized bool      `db:"is_authorized"`
	IsAdmin      bool      `db:"is_admin"`
	CreatedAt    time.Time `db:"created_at"`
}
