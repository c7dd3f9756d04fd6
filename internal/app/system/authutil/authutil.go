// Package authutil holds credential helpers shared by registration, login
// and password reset.
package authutil

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds, in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 20
)

var (
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 20 characters")
	ErrPasswordCommon   = errors.New("password is too common")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidEmail     = errors.New("invalid email address")
)

// commonPasswords is a short blocklist of passwords that meet the length
// rule but are guessed first.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"sunshine":   {},
	"football":   {},
	"baseball":   {},
	"letmein1":   {},
	"welcome1":   {},
	"princess":   {},
	"abcd1234":   {},
	"qwerty123":  {},
}

// ValidatePassword checks length and the common-password blocklist.
func ValidatePassword(pw string) error {
	n := len([]rune(pw))
	switch {
	case n == 0:
		return ErrPasswordRequired
	case n < MinPasswordLength:
		return ErrPasswordTooShort
	case n > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	if _, ok := commonPasswords[strings.ToLower(pw)]; ok {
		return ErrPasswordCommon
	}
	return nil
}

// ValidatePasswordPair validates pw and checks it matches confirm.
func ValidatePasswordPair(pw, confirm string) error {
	if err := ValidatePassword(pw); err != nil {
		return err
	}
	if pw != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash. An empty hash never matches.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// IsValidEmail performs a basic shape check: one @, a non-empty local part,
// and a dotted domain that neither starts nor ends with a dot.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || strings.Count(email, "@") != 1 {
		return false
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
