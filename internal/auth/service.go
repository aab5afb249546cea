package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/repository"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPasswordMismatch is returned when the confirmation does not match
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrEmailExists is returned when registering a taken email
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidCredentials is returned for an unknown email or wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RegisterRequest is the account creation payload
type RegisterRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	Email           string `json:"email" binding:"required,email,max=254"`
	Password        string `json:"password" binding:"required,max=128"`
	ConfirmPassword string `json:"confirm_password"`
}

// LoginRequest is the credential exchange payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Service registers and authenticates users
type Service struct {
	users      domain.UserRepository
	issuer     *Issuer
	bcryptCost int
	log        *logrus.Logger
}

// NewService creates an account service
func NewService(users domain.UserRepository, issuer *Issuer, bcryptCost int, logger *logrus.Logger) *Service {
	return &Service{
		users:      users,
		issuer:     issuer,
		bcryptCost: bcryptCost,
		log:        logger,
	}
}

// Register creates an account and issues its first token pair
func (s *Service) Register(ctx context.Context, req RegisterRequest) (TokenPair, error) {
	if req.Password != req.ConfirmPassword {
		return TokenPair{}, ErrPasswordMismatch
	}

	email := strings.TrimSpace(req.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return TokenPair{}, ErrEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return TokenPair{}, fmt.Errorf("checking email: %w", err)
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return TokenPair{}, err
	}

	user := &domain.User{Name: strings.TrimSpace(req.Name), Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return TokenPair{}, ErrEmailExists
		}
		return TokenPair{}, fmt.Errorf("creating user: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("User registered")
	return s.issuer.Issue(user.ID)
}

// Login verifies credentials and issues a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		s.log.WithField("user_id", user.ID).Warn("Failed login attempt")
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}
