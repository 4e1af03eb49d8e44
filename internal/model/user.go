package model

import (
	"strings"
	"time"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  *string   `db:"username" json:"username,omitempty"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != nil {
		return *u.Username
	}
	return u.Email
}

func (u *User) UsernameOrEmpty() string {
	if u == nil || u.Username == nil {
		return ""
	}
	return *u.Username
}
