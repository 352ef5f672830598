package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"storefront/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt is slow on purpose; keep the generated runs small.
func bcryptParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	return parameters
}

// Property: signup stores a bcrypt hash, never the plaintext password
func TestProperty_SignupHashesPasswords(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("passwords are hashed with bcrypt and not stored as plaintext", prop.ForAll(
		func(email string, password string) bool {
			userRepo := newMockUserRepository()
			service := NewUserService(userRepo, "test-secret", 0)
			ctx := context.Background()

			_, user, err := service.Signup(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Signup failed: %v", err)
				return false
			}

			if user.PasswordHash == password {
				t.Logf("FAIL: Password stored as plaintext for email %s", email)
				return false
			}

			storedUser, err := userRepo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("FAIL: Could not find stored user: %v", err)
				return false
			}

			if err := bcrypt.CompareHashAndPassword([]byte(storedUser.PasswordHash), []byte(password)); err != nil {
				t.Logf("FAIL: Stored hash doesn't match password: %v", err)
				return false
			}

			cost, err := bcrypt.Cost([]byte(storedUser.PasswordHash))
			return err == nil && cost == BcryptCost
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: a login token carries the user id and a 7-day expiry
func TestProperty_LoginTokenCarriesUserID(t *testing.T) {
	properties := gopter.NewProperties(bcryptParameters())

	properties.Property("login tokens validate back to the same user", prop.ForAll(
		func(email string, password string) bool {
			service := NewUserService(newMockUserRepository(), "test-secret-key", 0)
			ctx := context.Background()

			_, user, err := service.Signup(ctx, email, password)
			if err != nil {
				return false
			}

			token, loggedIn, err := service.Login(ctx, email, password)
			if err != nil {
				t.Logf("FAIL: Login failed: %v", err)
				return false
			}
			if loggedIn.ID != user.ID {
				t.Logf("FAIL: Login returned a different user")
				return false
			}

			claims, err := service.ValidateToken(token)
			if err != nil {
				t.Logf("FAIL: Token validation failed: %v", err)
				return false
			}

			if claims.UserID != user.ID {
				t.Logf("FAIL: User ID claim mismatch. Expected %s, got %s", user.ID, claims.UserID)
				return false
			}

			if claims.ExpiresAt == nil || claims.IssuedAt == nil {
				t.Logf("FAIL: Token missing time claims")
				return false
			}

			validity := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
			return validity == DefaultTokenExpiration
		},
		gen.RegexMatch(`[a-z]{3,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	service := NewUserService(newMockUserRepository(), "secret", time.Hour)
	ctx := context.Background()

	_, _, err := service.Signup(ctx, "buyer@example.com", "password123")
	require.NoError(t, err)

	_, _, err = service.Signup(ctx, "  Buyer@Example.com ", "another-password")
	assert.ErrorIs(t, err, repository.ErrUserAlreadyExists)
}

func TestSignupRejectsOverlongPassword(t *testing.T) {
	userRepo := newMockUserRepository()
	service := NewUserService(userRepo, "secret", time.Hour)
	ctx := context.Background()

	_, _, err := service.Signup(ctx, "long@example.com", strings.Repeat("x", MaxPasswordBytes+8))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 25 three-byte runes: short in characters, too long in bytes.
	_, _, err = service.Signup(ctx, "runes@example.com", strings.Repeat("€", 25))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = userRepo.FindByEmail(ctx, "long@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, _, err = service.Signup(ctx, "edge@example.com", strings.Repeat("x", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestSignupNormalizesEmail(t *testing.T) {
	userRepo := newMockUserRepository()
	service := NewUserService(userRepo, "secret", time.Hour)

	_, user, err := service.Signup(context.Background(), "  Mixed@Example.COM ", "password123")
	require.NoError(t, err)
	assert.Equal(t, "mixed@example.com", user.Email)

	_, _, err = service.Login(context.Background(), "MIXED@example.com", "password123")
	assert.NoError(t, err)
}

func TestLoginInvalidCredentials(t *testing.T) {
	service := NewUserService(newMockUserRepository(), "secret", time.Hour)
	ctx := context.Background()

	_, _, err := service.Signup(ctx, "buyer@example.com", "password123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "buyer@example.com", password: "password124"},
		{name: "unknown email", email: "nobody@example.com", password: "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, user, err := service.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Empty(t, token)
			assert.Nil(t, user)
		})
	}
}

func TestValidateTokenRejectsBadTokens(t *testing.T) {
	service := NewUserService(newMockUserRepository(), "secret", time.Hour)

	sign := func(method jwt.SigningMethod, key interface{}, claims *Claims) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}

	now := time.Now()
	valid := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: sign(jwt.SigningMethodHS256, []byte("other"), &Claims{UserID: uuid.New(), RegisteredClaims: valid})},
		{name: "expired", token: sign(jwt.SigningMethodHS256, []byte("secret"), &Claims{
			UserID: uuid.New(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
				IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			},
		})},
		{name: "missing user id", token: sign(jwt.SigningMethodHS256, []byte("secret"), &Claims{RegisteredClaims: valid})},
		{name: "unsigned", token: sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &Claims{UserID: uuid.New(), RegisteredClaims: valid})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestGetUserByID(t *testing.T) {
	service := NewUserService(newMockUserRepository(), "secret", time.Hour)
	ctx := context.Background()

	_, user, err := service.Signup(ctx, "buyer@example.com", "password123")
	require.NoError(t, err)

	found, err := service.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = service.GetUserByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, repository.ErrUserNotFound))
}
