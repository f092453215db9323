package validation

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 1
	// MaxUsernameLen максимальная длина username (в символах)
	MaxUsernameLen = 50

	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 6
	// MaxPasswordLen bcrypt ignores everything past 72 bytes.
	MaxPasswordLen = 72
)

// ValidateUsername проверяет, что username соответствует требованиям:
// 1..50 символов, без пробелов и управляющих символов.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if !utf8.ValidString(username) {
		return fmt.Errorf("username must be valid UTF-8")
	}

	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("username must not contain whitespace or control characters")
		}
	}

	return nil
}

// ValidatePassword проверяет требования к паролю.
// Length is counted in bytes since that is what bcrypt consumes.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}
