package service

import "fintrack/internal/entity"

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresIn int64
	User      *entity.User
	Session   *entity.Session
}

type ResetTokenResult struct {
	ResetToken string
	ExpiresIn  int64
}
