package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
	"github.com/Ycseeasy/explore-with-me/internal/sanitize"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrNameTaken = errors.New("category name is already taken")
	// ErrInUse is returned when deleting a category that events still reference.
	ErrInUse = errors.New("category is used by events")

	ErrInvalidName = errors.New("category name must be 1 to 50 characters")
)

type Category struct {
	ID   string
	Name string
}

type Repository interface {
	Create(ctx context.Context, c Category) (*Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Rename(ctx context.Context, id, name string) (*Category, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, after string, limit int) ([]Category, error)
}

type Service struct {
	repo      Repository
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator.New(),
		logger:    logger.With().Str("component", "categories").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, name string) (*Category, error) {
	name, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}
	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate category id: %w", err)
	}
	created, err := s.repo.Create(ctx, Category{ID: id, Name: name})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("category_id", created.ID).Str("name", created.Name).Msg("category created")
	return created, nil
}

func (s *Service) Rename(ctx context.Context, id, name string) (*Category, error) {
	name, err := s.cleanName(name)
	if err != nil {
		return nil, err
	}
	return s.repo.Rename(ctx, id, name)
}

func (s *Service) Get(ctx context.Context, id string) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, after string, limit int) ([]Category, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.List(ctx, after, limit)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("category_id", id).Msg("category deleted")
	return nil
}

func (s *Service) cleanName(name string) (string, error) {
	name = sanitize.Text(name)
	if err := s.validator.Var(name, "required,max=50"); err != nil {
		return "", ErrInvalidName
	}
	return name, nil
}
