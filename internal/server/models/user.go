// Package models defines server-side data models persisted in the database
// and the shapes exchanged with the cache and the event producer.
package models

import "time"

// User is the durable identity record. PasswordHash never leaves the
// service; outward-facing shapes are built with Out().
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// UserOut is the outward projection of a User returned by the register
// endpoint and published to the event stream.
type UserOut struct {
	ID        int64     `json:"user_id"`
	Login     string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Out strips credential material from the user record.
func (u *User) Out() *UserOut {
	return &UserOut{
		ID:        u.ID,
		Login:     u.Login,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

// CachedUser is the ephemeral projection stored in Redis: just enough to
// answer "who is this access token for". The password hash is deliberately
// not part of it; credential checks always read the directory.
type CachedUser struct {
	ID        int64     `json:"user_id"`
	Login     string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromUser builds the cache projection of a user.
func FromUser(u *User) *CachedUser {
	return &CachedUser{
		ID:        u.ID,
		Login:     u.Login,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
	}
}

// User restores an identity-only record from a cache projection.
func (c *CachedUser) User() *User {
	return &User{
		ID:        c.ID,
		Login:     c.Login,
		FullName:  c.FullName,
		CreatedAt: c.CreatedAt,
	}
}
