package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ironup-backend/internal/models"
	"ironup-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Claims are the session token claims. Avatar and Coin are a snapshot taken
// at login and are never used as the source of truth.
type Claims struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	Coin     int    `json:"coin"`
	jwt.RegisteredClaims
}

// UserService handles registration, sessions and profiles
type UserService struct {
	userRepo  UserStore
	groups    *GroupService
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, groups *GroupService, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		userRepo:  userRepo,
		groups:    groups,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// RegisterRequest holds the fields needed to create an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

// Register creates a new account with a bcrypt password hash
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return nil, validationError("username, email and password are required")
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, validationError("email is not valid")
	}
	if emailPattern.MatchString(req.Username) {
		return nil, validationError("username must not be an email address")
	}
	if req.Avatar == "" {
		req.Avatar = models.DefaultAvatar
	}

	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, conflictError("user already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, conflictError("user already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Avatar:       req.Avatar,
		History:      []string{},
		CreatedAt:    s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflictError("user already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Session is returned by a successful login
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login verifies the identifier (email or username) and password and issues a token
func (s *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, validationError("identifier and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if emailPattern.MatchString(identifier) {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	token, err := s.GenerateJWT(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Username: user.Username}, nil
}

// GenerateJWT generates a session token for a user
func (s *UserService) GenerateJWT(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: user.Username,
		Avatar:   user.Avatar,
		Coin:     user.Coin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a session token and returns the verified username
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("%w: invalid token: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.Username == "" {
		return "", fmt.Errorf("%w: username not found in token", ErrUnauthorized)
	}

	return claims.Username, nil
}

// Profile returns the public profile, read from the store
func (s *UserService) Profile(ctx context.Context, username string) (*models.Profile, error) {
	user, err := s.getUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.Profile{Username: user.Username, Avatar: user.Avatar, Coin: user.Coin}, nil
}

// SetPushToken stores or clears the APNs device token of a user
func (s *UserService) SetPushToken(ctx context.Context, username, pushToken string) error {
	var token *string
	if pushToken = strings.TrimSpace(pushToken); pushToken != "" {
		token = &pushToken
	}
	if err := s.userRepo.UpdatePushToken(ctx, username, token); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("user not found")
		}
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// DeleteAccount leaves the current group, if any, and removes the user
func (s *UserService) DeleteAccount(ctx context.Context, username string) error {
	user, err := s.getUser(ctx, username)
	if err != nil {
		return err
	}

	if user.InGroup() {
		if _, err := s.groups.LeaveGroup(ctx, username); err != nil {
			return fmt.Errorf("failed to leave group: %w", err)
		}
	}

	if err := s.userRepo.Delete(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("user not found")
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Info().Str("username", username).Msg("Account deleted")
	return nil
}

func (s *UserService) getUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
