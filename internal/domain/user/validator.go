package user

import (
	"fmt"
	"unicode"
)

const (
	MinLoginLen    = 3
	MaxLoginLen    = 32
	MinPasswordLen = 8
	// MaxPasswordLen - предел bcrypt
	MaxPasswordLen = 72
)

// Validator - интерфейс для валидации пользовательских данных
type Validator interface {
	ValidateRegister(login, password string) error
	ValidateLogin(login string) error
	ValidatePassword(password string) error
}

type PasswordValidator struct {
	requireDigit  bool
	requireLetter bool
}

// NewPasswordValidator создает валидатор: пароль из 8+ символов с буквой и цифрой.
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{
		requireDigit:  true,
		requireLetter: true,
	}
}

// ValidateRegister валидирует данные для регистрации
func (v *PasswordValidator) ValidateRegister(login, password string) error {
	if err := v.ValidateLogin(login); err != nil {
		return fmt.Errorf("login validation failed: %w", err)
	}
	if err := v.ValidatePassword(password); err != nil {
		return fmt.Errorf("password validation failed: %w", err)
	}
	return nil
}

// ValidateLogin валидирует логин
func (v *PasswordValidator) ValidateLogin(login string) error {
	n := len([]rune(login))
	if n < MinLoginLen {
		return fmt.Errorf("login must be at least %d characters", MinLoginLen)
	}
	if n > MaxLoginLen {
		return fmt.Errorf("login must be at most %d characters", MaxLoginLen)
	}

	for _, r := range login {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' && r != '@' {
			return fmt.Errorf("login can only contain letters, digits, '_', '-', '.', '@'")
		}
	}
	return nil
}

// ValidatePassword валидирует пароль
func (v *PasswordValidator) ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must be at most %d bytes", MaxPasswordLen)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if v.requireLetter && !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if v.requireDigit && !hasDigit {
		return fmt.Errorf("password must contain at least one digit")
	}
	return nil
}
