// Package service contains the application's domain services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenIssuer identifies tokens minted by this service.
	TokenIssuer = "quill-api"
	// SessionAudience marks session tokens.
	SessionAudience = "quill-client"
	// ResetAudience marks password-reset tokens; session tokens are never
	// accepted where a reset token is expected and vice versa.
	ResetAudience = "quill-reset"

	// bcryptCost is deliberately above the library default.
	bcryptCost = 12

	sessionTTL  = 24 * time.Hour
	rememberTTL = 30 * 24 * time.Hour

	denylistPrefix = "denylist:"
)

// AuthService validates credentials, mints session tokens, and runs the
// password-reset token flow.
type AuthService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
	secret   string
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Session describes an established session token.
type Session struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

// NewAuthService creates a new AuthService. rdb may be nil; logout then
// degrades to client-side token discard.
func NewAuthService(userRepo repository.UserRepository, rdb *redis.Client, secret string) *AuthService {
	return &AuthService{userRepo: userRepo, rdb: rdb, secret: secret}
}

// Register creates a new account after format and uniqueness validation.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	// Uniqueness is checked here, before the insert, so the caller gets a
	// field-specific message instead of a bare constraint violation.
	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateUsernameError()
	}

	existing, err = s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewDuplicateEmailError()
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hashed),
		ImageFile: models.DefaultAvatar,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and returns a session. Unknown email and wrong
// password collapse into the same error.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool) (*Session, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, models.NewUnauthorizedError("Invalid credentials")
	}

	ttl := sessionTTL
	if remember {
		ttl = rememberTTL
	}

	session, err := s.generateSession(user.ID, ttl)
	if err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	return session, user, nil
}

// Logout denylists the session token's jti until the token would have
// expired. Without redis this is a best-effort no-op.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) {
	if s.rdb == nil || jti == "" {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.rdb.Set(ctx, denylistPrefix+jti, "1", ttl).Err(); err != nil {
		middleware.Logger.Warn("failed to denylist session token",
			slog.String("jti", jti), slog.String("error", err.Error()))
	}
}

// IsSessionRevoked reports whether the given jti has been denylisted.
func (s *AuthService) IsSessionRevoked(ctx context.Context, jti string) bool {
	if s.rdb == nil || jti == "" {
		return false
	}
	n, err := s.rdb.Exists(ctx, denylistPrefix+jti).Result()
	if err != nil {
		// Fail open: an unreachable denylist must not lock everyone out.
		return false
	}
	return n > 0
}

// IssueResetToken produces a signed, time-limited token encoding the user's
// id. The token is opaque to the client.
func (s *AuthService) IssueResetToken(user *models.User, ttl time.Duration) (string, error) {
	if s.secret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(user.ID), 10),
		"iss": TokenIssuer,
		"aud": ResetAudience,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// VerifyResetToken returns the referenced user, or nil on any verification
// failure: expiry, tampering, malformed input, wrong audience, or a user that
// no longer exists. It never distinguishes between those cases.
func (s *AuthService) VerifyResetToken(ctx context.Context, tokenString string) *models.User {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(s.secret), nil
		},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(ResetAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return nil
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, uint(userID))
	if err != nil {
		return nil
	}
	return user
}

// ResetPassword re-hashes and persists the new password. The old password is
// not required; trust is anchored in the verified token.
func (s *AuthService) ResetPassword(ctx context.Context, user *models.User, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hashed)
	return s.userRepo.Update(ctx, user)
}

// generateSession creates a JWT session token for the given user ID.
func (s *AuthService) generateSession(userID uint, ttl time.Duration) (*Session, error) {
	if s.secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	jti := generateJTI()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10), // Subject (user ID as string)
		"iss": TokenIssuer,
		"aud": SessionAudience,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return nil, err
	}
	return &Session{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// generateJTI creates a unique JWT ID so individual sessions can be revoked.
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
