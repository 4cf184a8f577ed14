package main

import (
	"strings"
	"testing"

	"scanline/backend/internal/config"
)

func TestValidateSecurityConfig(t *testing.T) {
	good := config.Config{
		AuthSecret: strings.Repeat("a", 32),
		ManagerPIN: "741952",
	}
	if err := validateSecurityConfig(good); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	short := good
	short.AuthSecret = "too-short"
	if err := validateSecurityConfig(short); err == nil {
		t.Fatalf("expected error for a short secret")
	}

	noPIN := good
	noPIN.ManagerPIN = "12345"
	if err := validateSecurityConfig(noPIN); err == nil {
		t.Fatalf("expected error for a short PIN")
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{
		"123456", "654321", "000000", "111111", "999999",
		"121212", "112233", "123123",
		"777777",         // all same digit
		"234567", "98765", // sequential
	}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %q to be rejected", pin)
		}
	}

	strong := []string{"741952", "806143", "592018"}
	for _, pin := range strong {
		if err := validatePINStrength(pin); err != nil {
			t.Fatalf("expected %q to pass, got %v", pin, err)
		}
	}
}
