package service

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwalcott/taskline/internal/repository"
)

// =============================================================================
// Email Validation Tests
// =============================================================================

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple address", "alice@example.com", true},
		{"subdomain", "bob@mail.example.co.uk", true},
		{"plus tag", "carol+tasks@example.com", true},
		{"empty", "", false},
		{"no at symbol", "alice.example.com", false},
		{"two at symbols", "alice@@example.com", false},
		{"starts with at", "@example.com", false},
		{"ends with at", "alice@", false},
		{"no dot in domain", "alice@localhost", false},
		{"consecutive dots", "alice..smith@example.com", false},
		{"too long", strings.Repeat("a", 250) + "@e.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEmail(tc.email)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Errorf("expected error for %q", tc.email)
			}
		})
	}
}

// =============================================================================
// Repository Conversion Tests
// =============================================================================

func TestRepoUserToDomain(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	user := repoUserToDomain(repository.User{
		ID:           id,
		Email:        "alice@example.com",
		PasswordHash: "$2a$12$hash",
		Name:         "Alice",
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if user.ID != id {
		t.Errorf("expected ID %v, got %v", id, user.ID)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("unexpected email %q", user.Email)
	}
	if user.Name != "Alice" {
		t.Errorf("unexpected name %q", user.Name)
	}
	if user.DisplayName() != "Alice" {
		t.Errorf("unexpected display name %q", user.DisplayName())
	}
}
