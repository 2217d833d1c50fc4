package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, in ItemInput) (Item, error)
	UpdateItem(ctx context.Context, id int64, in ItemInput) (Item, error)
	ListCenters(ctx context.Context) ([]Center, error)
	GetCenter(ctx context.Context, id int64) (Center, error)
	CreateCenter(ctx context.Context, in CenterInput) (Center, error)
	SetCenterActive(ctx context.Context, id int64, active bool) error
	ListWorkers(ctx context.Context, centerID int64) ([]Worker, error)
	CreateWorker(ctx context.Context, in WorkerInput) (Worker, error)
	SetWorkerActive(ctx context.Context, id int64, active bool) error
}

// Service validates and forwards catalog management requests.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListItems returns items ordered by denomination and type.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListItems(ctx, filter)
}

// GetItem resolves a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	return s.repo.GetItem(ctx, id)
}

// CreateItem registers a new supply item.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (Item, error) {
	in = normaliseItem(in)
	if err := s.check(in); err != nil {
		return Item{}, err
	}
	return s.repo.CreateItem(ctx, in)
}

// UpdateItem edits an existing item. Ledger history is untouched, so a smaller
// container size that would leave derived stock negative fails with ErrStockUnderflow.
func (s *Service) UpdateItem(ctx context.Context, id int64, in ItemInput) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	in = normaliseItem(in)
	if err := s.check(in); err != nil {
		return Item{}, err
	}
	return s.repo.UpdateItem(ctx, id, in)
}

func (s *Service) ListCenters(ctx context.Context) ([]Center, error) {
	return s.repo.ListCenters(ctx)
}

func (s *Service) CreateCenter(ctx context.Context, in CenterInput) (Center, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.check(in); err != nil {
		return Center{}, err
	}
	return s.repo.CreateCenter(ctx, in)
}

func (s *Service) SetCenterActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetCenterActive(ctx, id, active)
}

// ListWorkers lists workers of a center; unknown centers yield ErrNotFound.
func (s *Service) ListWorkers(ctx context.Context, centerID int64) ([]Worker, error) {
	if _, err := s.repo.GetCenter(ctx, centerID); err != nil {
		return nil, err
	}
	return s.repo.ListWorkers(ctx, centerID)
}

func (s *Service) CreateWorker(ctx context.Context, in WorkerInput) (Worker, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Worker{}, err
	}
	if _, err := s.repo.GetCenter(ctx, in.CenterID); err != nil {
		return Worker{}, err
	}
	return s.repo.CreateWorker(ctx, in)
}

func (s *Service) SetWorkerActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetWorkerActive(ctx, id, active)
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func normaliseItem(in ItemInput) ItemInput {
	in.Denomination = strings.TrimSpace(in.Denomination)
	in.Category = strings.TrimSpace(in.Category)
	in.Model = strings.TrimSpace(in.Model)
	in.Barcode = strings.TrimSpace(in.Barcode)
	return in
}
