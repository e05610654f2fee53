package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"vecbridge/internal/errs"
	"vecbridge/internal/model"
	"vecbridge/internal/pkg/jwtutil"
	"vecbridge/internal/repository"
)

type AuthService struct {
	userRepo      *repository.UserRepository
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(userRepo *repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || len(password) < 8 {
		return nil, errs.New(errs.KindInvalidRequest, "username, email and a password of at least 8 characters are required")
	}

	existingByName, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "lookup user failed", err)
	}
	if existingByName != nil {
		return nil, errs.New(errs.KindInvalidRequest, "username already exists")
	}

	existingByEmail, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "lookup user failed", err)
	}
	if existingByEmail != nil {
		return nil, errs.New(errs.KindInvalidRequest, "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, errs.Wrap(errs.KindStorage, "create user failed", err)
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, errs.New(errs.KindInvalidRequest, "username and password are required")
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "lookup user failed", err)
	}
	if user == nil {
		return nil, errs.New(errs.KindUnauthorized, "invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errs.New(errs.KindUnauthorized, "invalid username or password")
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "invalid user id")
	}
	return s.userRepo.GetByID(id)
}
