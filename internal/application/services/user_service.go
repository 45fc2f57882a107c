package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/infrastructure/logger"
	"github.com/kanbanboard/core/internal/ports"
)

// UserService handles user administration outside the HTTP API
type UserService struct {
	tx       ports.TxManager
	validate *validator.Validate
	logger   *logger.Logger
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(tx ports.TxManager, logger *logger.Logger) *UserService {
	return &UserService{
		tx:       tx,
		validate: validator.New(),
		logger:   logger.WithComponent("users"),
		now:      time.Now,
	}
}

// CreateUser creates a new user with the same rules as registration
func (s *UserService) CreateUser(ctx context.Context, name, email, password string) (*entities.User, error) {
	req := ports.RegisterRequest{Name: name, Email: email, Password: password}
	req.Normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrValidation, err.Error())
	}

	user, err := createUser(ctx, s.tx, s.now(), req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User created successfully", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// createUser hashes the password and inserts the user, rejecting a taken
// email both before the insert and on the unique constraint.
func createUser(ctx context.Context, tx ports.TxManager, now time.Time, name, email, password string) (*entities.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entities.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
	}

	err = tx.WithinTransaction(ctx, func(ctx context.Context, repos ports.Repositories) error {
		exists, err := repos.Users.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return entities.ErrEmailAlreadyExists
		}
		return repos.Users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, entities.ErrEmailAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}
