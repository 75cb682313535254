package auth

import (
	"errors"
	"strings"
	"time"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name"`
	Mail     string `json:"mail"     binding:"omitempty,email"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

var (
	errAuthUserNotFound  = errors.New("auth user not found")
	errAuthWrongPassword = errors.New("auth wrong password")
	errAlreadyRegistered = errors.New("an account is already registered")
)

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return fallback
}
