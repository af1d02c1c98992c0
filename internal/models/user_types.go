package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the model for the 'roles' table.
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Well-known role names. Product mutation and low-stock reporting are
// gated on RoleAdmin; everyone registers as RoleCustomer.
const (
	RoleAdmin    = "Admin"
	RoleCustomer = "Customer"
)

// User is the model for the 'users' table.
// Pointers for nullable profile fields so they serialize cleanly.
type User struct {
	ID           int64  `json:"id" db:"id"`
	FullName     string `json:"fullName" db:"full_name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	RoleID       int64  `json:"roleId" db:"role_id"`
	RoleName     string `json:"role,omitempty" db:"-"`

	PhoneNumber *string `json:"phoneNumber,omitempty" db:"phone_number"`
	Address     *string `json:"address,omitempty" db:"address"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Password wraps a plaintext/hash pair so handlers never touch bcrypt directly.
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
