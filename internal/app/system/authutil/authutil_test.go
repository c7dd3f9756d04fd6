package authutil

import (
	"strings"
	"testing"
)

func TestIsValidEmail_Valid(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@school.edu.ph",
		"a+tag@sub.example.org",
		"  padded@example.com  ",
	}
	for _, email := range valid {
		if !IsValidEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}
}

func TestIsValidEmail_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"userexample.com",
		"user@@example.com",
		"a@b@example.com",
		"@example.com",
		"user@localhost",
		"user@example.",
		"user@.example.com",
		"us er@example.com",
	}
	for _, email := range invalid {
		if IsValidEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestValidatePassword_Valid(t *testing.T) {
	validPasswords := []string{
		"secure123",
		"MyP@ssw0rd",
		"abcdefg1",
		strings.Repeat("x", 20),
		"pässwörd-ünicode",
	}

	for _, pw := range validPasswords {
		if err := ValidatePassword(pw); err != nil {
			t.Errorf("expected %q to be valid, got error: %v", pw, err)
		}
	}
}

func TestValidatePassword_Empty(t *testing.T) {
	if err := ValidatePassword(""); err != ErrPasswordRequired {
		t.Errorf("expected ErrPasswordRequired, got %v", err)
	}
}

func TestValidatePassword_TooShort(t *testing.T) {
	for _, pw := range []string{"a", "abc", "abcdefg"} {
		if err := ValidatePassword(pw); err != ErrPasswordTooShort {
			t.Errorf("expected ErrPasswordTooShort for %q, got %v", pw, err)
		}
	}
}

func TestValidatePassword_TooLong(t *testing.T) {
	if err := ValidatePassword(strings.Repeat("a", 21)); err != ErrPasswordTooLong {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidatePassword_CommonCaseInsensitive(t *testing.T) {
	for _, pw := range []string{"password", "PASSWORD", "Password1", "12345678", "IloveYou"} {
		if err := ValidatePassword(pw); err != ErrPasswordCommon {
			t.Errorf("expected ErrPasswordCommon for %q, got %v", pw, err)
		}
	}
}

func TestValidatePasswordPair(t *testing.T) {
	if err := ValidatePasswordPair("secure123", "secure124"); err != ErrPasswordMismatch {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
	if err := ValidatePasswordPair("short", "short"); err != ErrPasswordTooShort {
		t.Errorf("length is checked before match, got %v", err)
	}
	if err := ValidatePasswordPair("secure123", "secure123"); err != nil {
		t.Errorf("expected matching pair to pass, got %v", err)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secure123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "secure123" {
		t.Fatal("hash must not equal the plain password")
	}
	if !CheckPassword(hash, "secure123") {
		t.Error("expected the right password to match")
	}
	if CheckPassword(hash, "secure124") {
		t.Error("expected a wrong password not to match")
	}
	if CheckPassword("", "secure123") {
		t.Error("an empty hash must never match")
	}
}
