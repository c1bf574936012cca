package service

import (
	"context"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}

func emptyUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:       func(_ context.Context, id uint) (*models.User, error) { return nil, models.NewNotFoundError("User", id) },
		getByEmailFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		updateFn: func(_ context.Context, _ *models.User) error { return nil },
	}
}

func appErrCode(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := err.(*models.AppError)
	require.True(t, ok, "expected *models.AppError, got %T: %v", err, err)
	return appErr.Code
}

func TestRegister(t *testing.T) {
	t.Run("Success hashes the password", func(t *testing.T) {
		repo := emptyUserRepo()
		svc := NewAuthService(repo, nil, "test_secret")

		user, err := svc.Register(context.Background(), RegisterInput{
			Username: "alice",
			Email:    "alice@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		require.NotNil(t, user)

		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, models.DefaultAvatar, user.ImageFile)
		assert.NotEqual(t, "password123", user.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")))
	})

	t.Run("Duplicate username", func(t *testing.T) {
		repo := emptyUserRepo()
		repo.getByUsernameFn = func(_ context.Context, username string) (*models.User, error) {
			if username == "alice" {
				return &models.User{ID: 7, Username: "alice"}, nil
			}
			return nil, nil
		}
		svc := NewAuthService(repo, nil, "test_secret")

		_, err := svc.Register(context.Background(), RegisterInput{
			Username: "alice",
			Email:    "new@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.Equal(t, models.CodeDuplicateUsername, appErrCode(t, err))
	})

	t.Run("Duplicate email", func(t *testing.T) {
		repo := emptyUserRepo()
		repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			return &models.User{ID: 7, Email: email}, nil
		}
		svc := NewAuthService(repo, nil, "test_secret")

		_, err := svc.Register(context.Background(), RegisterInput{
			Username: "bob",
			Email:    "taken@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.Equal(t, models.CodeDuplicateEmail, appErrCode(t, err))
	})

	t.Run("Invalid input", func(t *testing.T) {
		svc := NewAuthService(emptyUserRepo(), nil, "test_secret")

		for _, in := range []RegisterInput{
			{Username: "a", Email: "a@example.com", Password: "password123"},
			{Username: "alice", Email: "not-an-email", Password: "password123"},
			{Username: "alice", Email: "a@example.com", Password: "short"},
		} {
			_, err := svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, models.CodeValidation, appErrCode(t, err))
		}
	})
}

func TestLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := emptyUserRepo()
	repo.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email == "alice@example.com" {
			return &models.User{ID: 1, Username: "alice", Email: email, Password: string(hashed)}, nil
		}
		return nil, nil
	}
	svc := NewAuthService(repo, nil, "test_secret")

	t.Run("Success", func(t *testing.T) {
		session, user, err := svc.Login(context.Background(), "alice@example.com", "password123", false)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.NotEmpty(t, session.Token)
		assert.NotEmpty(t, session.JTI)
		assert.Equal(t, uint(1), user.ID)
		assert.WithinDuration(t, time.Now().Add(sessionTTL), session.ExpiresAt, time.Minute)
	})

	t.Run("Remember extends expiry", func(t *testing.T) {
		session, _, err := svc.Login(context.Background(), "alice@example.com", "password123", true)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(rememberTTL), session.ExpiresAt, time.Minute)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, _, err := svc.Login(context.Background(), "alice@example.com", "wrongpass123", false)
		require.Error(t, err)
		assert.Equal(t, models.CodeUnauthorized, appErrCode(t, err))
	})

	t.Run("Unknown email uses the same error", func(t *testing.T) {
		_, _, wrongPassErr := svc.Login(context.Background(), "alice@example.com", "wrongpass123", false)
		_, _, unknownErr := svc.Login(context.Background(), "nobody@example.com", "password123", false)
		require.Error(t, unknownErr)
		assert.Equal(t, wrongPassErr.Error(), unknownErr.Error())
	})
}

func TestLogoutDenylistsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	svc := NewAuthService(emptyUserRepo(), rdb, "test_secret")
	ctx := context.Background()

	assert.False(t, svc.IsSessionRevoked(ctx, "some-jti"))

	svc.Logout(ctx, "some-jti", time.Now().Add(time.Hour))
	assert.True(t, svc.IsSessionRevoked(ctx, "some-jti"))

	// Denylist entries expire with the token
	mr.FastForward(2 * time.Hour)
	assert.False(t, svc.IsSessionRevoked(ctx, "some-jti"))
}

func TestResetToken(t *testing.T) {
	alice := &models.User{ID: 42, Username: "alice", Email: "alice@example.com"}
	repo := emptyUserRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		if id == alice.ID {
			return alice, nil
		}
		return nil, models.NewNotFoundError("User", id)
	}
	svc := NewAuthService(repo, nil, "test_secret")
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		token, err := svc.IssueResetToken(alice, 30*time.Minute)
		require.NoError(t, err)

		user := svc.VerifyResetToken(ctx, token)
		require.NotNil(t, user)
		assert.Equal(t, alice.ID, user.ID)
	})

	t.Run("Expired token", func(t *testing.T) {
		token, err := svc.IssueResetToken(alice, -1*time.Second)
		require.NoError(t, err)
		assert.Nil(t, svc.VerifyResetToken(ctx, token))
	})

	t.Run("Tampered token", func(t *testing.T) {
		token, err := svc.IssueResetToken(alice, 30*time.Minute)
		require.NoError(t, err)

		tampered := []byte(token)
		i := len(tampered) / 2
		if tampered[i] == 'a' {
			tampered[i] = 'b'
		} else {
			tampered[i] = 'a'
		}
		assert.Nil(t, svc.VerifyResetToken(ctx, string(tampered)))
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewAuthService(repo, nil, "other_secret")
		token, err := other.IssueResetToken(alice, 30*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, svc.VerifyResetToken(ctx, token))
	})

	t.Run("Session token is not a reset token", func(t *testing.T) {
		session, err := svc.generateSession(alice.ID, time.Hour)
		require.NoError(t, err)
		assert.Nil(t, svc.VerifyResetToken(ctx, session.Token))
	})

	t.Run("Deleted user", func(t *testing.T) {
		ghost := &models.User{ID: 999}
		token, err := svc.IssueResetToken(ghost, 30*time.Minute)
		require.NoError(t, err)
		assert.Nil(t, svc.VerifyResetToken(ctx, token))
	})

	t.Run("Garbage input", func(t *testing.T) {
		assert.Nil(t, svc.VerifyResetToken(ctx, ""))
		assert.Nil(t, svc.VerifyResetToken(ctx, "not.a.token"))
	})
}

func TestResetPassword(t *testing.T) {
	var saved *models.User
	repo := emptyUserRepo()
	repo.updateFn = func(_ context.Context, u *models.User) error {
		saved = u
		return nil
	}
	svc := NewAuthService(repo, nil, "test_secret")

	user := &models.User{ID: 1, Password: "old-hash"}
	require.NoError(t, svc.ResetPassword(context.Background(), user, "newpassword456"))
	require.NotNil(t, saved)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.Password), []byte("newpassword456")))

	err := svc.ResetPassword(context.Background(), user, "short")
	require.Error(t, err)
	assert.Equal(t, models.CodeValidation, appErrCode(t, err))
}
