package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/sanitize"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service handles user management operations
type Service struct {
	repo      Repository
	remover   Remover
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithRemover routes Delete through r instead of the bare repository delete.
func WithRemover(r Remover) Option {
	return func(s *Service) {
		if r != nil {
			s.remover = r
		}
	}
}

// NewService creates a new user service instance
func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		validator: validator.New(),
		logger:    logger.With().Str("component", "users").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserParams contains parameters for creating a new user
type CreateUserParams struct {
	Name  string `validate:"required,min=2,max=250"`
	Email string `validate:"required,min=6,max=254,email"`
}

// FieldError reports an invalid user field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Create registers a user. Email addresses are unique case-insensitively.
func (s *Service) Create(ctx context.Context, params CreateUserParams) (*User, error) {
	params.Name = sanitize.Text(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	if err := s.validator.Struct(params); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return nil, FieldError{Field: strings.ToLower(fe.Field()), Message: fmt.Sprintf("failed %s validation", fe.Tag())}
		}
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	user, err := s.repo.Create(ctx, CreateParams{
		ID:        id,
		Name:      params.Name,
		Email:     params.Email,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user created")
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// List pages through users, optionally restricted to a set of ids.
func (s *Service) List(ctx context.Context, filters ListFilters) (ListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultPageSize
	}
	if filters.Limit > maxPageSize {
		filters.Limit = maxPageSize
	}
	return s.repo.List(ctx, filters)
}

// Delete removes a user. With a Remover configured their active requests are
// canceled and their seats released in the same unit of work.
func (s *Service) Delete(ctx context.Context, id string) error {
	remove := s.repo.Delete
	if s.remover != nil {
		remove = s.remover.RemoveUser
	}
	if err := remove(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id).Msg("user deleted")
	return nil
}
