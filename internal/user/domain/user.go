package domain

import "time"

// User is a row of the tenant's usuarios table
type User struct {
	ID           int64     `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Nome         string    `db:"nome" json:"nome"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CreateUserRequest represents a create user request
type CreateUserRequest struct {
	Login    string `json:"login" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Nome     string `json:"nome" validate:"max=255"`
	Role     string `json:"role" validate:"required,oneof=user admin padrao"`
}
