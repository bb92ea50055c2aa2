package member

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=member
type Repository interface {
	CreateMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, filter ListFilter) ([]*Member, error)
	UpdateMember(ctx context.Context, m *Member) error
	UpdateTotalDebt(ctx context.Context, id uuid.UUID, total int64) error
	DeleteMember(ctx context.Context, id uuid.UUID) error
}

type ListFilter struct {
	Status *Status
	// Query matches name, phone or address, case-insensitively.
	Query string
}

type CreateParams struct {
	Name        string    `validate:"required,min=2,max=100"`
	Phone       *string   `validate:"omitempty,phone"`
	Address     *string   `validate:"omitempty,max=500"`
	Status      Status    `validate:"oneof=active inactive"`
	JoinDate    time.Time `validate:"required"`
	MonthlyDues int64     `validate:"gte=0,lte=999999"`
}

// UpdateParams carries the fields a caller may change. TotalDebt is not among them.
type UpdateParams struct {
	Name        *string `validate:"omitempty,min=2,max=100"`
	Phone       *string `validate:"omitempty,phone"`
	Address     *string `validate:"omitempty,max=500"`
	Status      *Status `validate:"omitempty,oneof=active inactive"`
	MonthlyDues *int64  `validate:"omitempty,gte=0,lte=999999"`
}

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})

	return v
}

type Service struct {
	repo     Repository
	clock    clock.Clock
	validate *validator.Validate
}

func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk, validate: newValidator()}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Member, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Phone = trimOptional(params.Phone)
	params.Address = trimOptional(params.Address)

	if params.Status == "" {
		params.Status = StatusActive
	}

	if params.JoinDate.IsZero() {
		params.JoinDate = s.clock.Now()
	}

	params.JoinDate = dateOnly(params.JoinDate)

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m := &Member{
		Name:        params.Name,
		Phone:       params.Phone,
		Address:     params.Address,
		Status:      params.Status,
		JoinDate:    params.JoinDate,
		MonthlyDues: params.MonthlyDues,
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.repo.GetMember(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Member, error) {
	return s.repo.ListMembers(ctx, filter)
}

func (s *Service) Search(ctx context.Context, query string) ([]*Member, error) {
	query = strings.TrimSpace(query)
	if len(query) > 100 {
		return nil, fmt.Errorf("%w: search query too long", ErrInvalid)
	}

	return s.repo.ListMembers(ctx, ListFilter{Query: query})
}

// Update applies params to the stored member. Existing debts keep their amounts
// when MonthlyDues changes; only debts generated afterwards use the new figure.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Member, error) {
	params.Phone = trimOptional(params.Phone)
	params.Address = trimOptional(params.Address)

	if params.Name != nil {
		params.Name = new(strings.TrimSpace(*params.Name))
	}

	if err := s.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		m.Name = *params.Name
	}

	if params.Phone != nil {
		m.Phone = params.Phone
	}

	if params.Address != nil {
		m.Address = params.Address
	}

	if params.Status != nil {
		m.Status = *params.Status
	}

	if params.MonthlyDues != nil {
		m.MonthlyDues = *params.MonthlyDues
	}

	if err := s.repo.UpdateMember(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Delete removes the member together with their debts and payments.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteMember(ctx, id)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}

	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	return &v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
