package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"curator/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users         map[string]store.User
	emailIndex    map[string]string // email -> userID
	verifications map[string]store.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:         make(map[string]store.User),
		emailIndex:    make(map[string]string),
		verifications: make(map[string]store.User),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if user, ok := m.users[userID]; ok {
		user.VerificationToken = token
		user.VerificationExpiresAt = &expiresAt
		m.users[userID] = user
		m.verifications[token] = user
	}
	return nil
}

func (m *mockUserStore) VerifyUserEmail(ctx context.Context, token string) error {
	if user, ok := m.verifications[token]; ok {
		user.IsEmailVerified = true
		m.users[user.ID] = user
		m.emailIndex[user.Email] = user.ID
		return nil
	}
	return errors.New("invalid token")
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Test User",
		}

		resp, err := svc.SignUp(ctx, req)
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if resp.UserID == "" {
			t.Error("expected a user ID")
		}
		if resp.VerificationToken == "" {
			t.Error("expected a verification token")
		}
		if !resp.RequiresEmailVerify {
			t.Error("new accounts should require email verification")
		}

		user, err := mockStore.GetUserByID(ctx, resp.UserID)
		if err != nil {
			t.Fatalf("user not persisted: %v", err)
		}
		if user.Role != "contributor" {
			t.Errorf("default role = %q, want contributor", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password must be hashed")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "test@example.com",
			Password:    "password456",
			DisplayName: "Other User",
		})
		if err == nil {
			t.Error("expected error for duplicate email")
		}
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "short@example.com",
			Password:    "short",
			DisplayName: "Short",
		})
		if err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{Email: "x@example.com"})
		if err == nil {
			t.Error("expected error for missing fields")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	signUp, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "mara@example.com",
		Password:    "correct-horse",
		DisplayName: "Mara",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	t.Run("unverified account", func(t *testing.T) {
		resp, err := svc.SignIn(ctx, SignInRequest{Email: "mara@example.com", Password: "correct-horse"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if !resp.RequiresVerify {
			t.Error("unverified account should require verification")
		}
	})

	t.Run("wrong password rejected even when unverified", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "mara@example.com", Password: "wrong"}); err == nil {
			t.Error("expected error for wrong password")
		}
	})

	t.Run("verified sign in", func(t *testing.T) {
		if err := svc.VerifyEmail(ctx, signUp.VerificationToken); err != nil {
			t.Fatalf("VerifyEmail failed: %v", err)
		}
		resp, err := svc.SignIn(ctx, SignInRequest{Email: "mara@example.com", Password: "correct-horse"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if resp.RequiresVerify {
			t.Error("verified account should not require verification")
		}
		if resp.User.Email != "mara@example.com" {
			t.Errorf("unexpected user %q", resp.User.Email)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "ghost@example.com", Password: "whatever"}); err == nil {
			t.Error("expected error for unknown email")
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMockUserStore())

	if err := svc.VerifyEmail(ctx, ""); err == nil {
		t.Error("expected error for empty token")
	}
	if err := svc.VerifyEmail(ctx, "bogus"); err == nil {
		t.Error("expected error for unknown token")
	}
}
