package addresses

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

const defaultCountry = "MA"

type Store interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, id string) (*domain.Address, error)
	Create(ctx context.Context, a *domain.Address) error
	Update(ctx context.Context, a *domain.Address) error
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// Input is a create or partial-update request. Nil fields are left unchanged
// on update.
type Input struct {
	Label      *string `json:"label"`
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Company    *string `json:"company"`
	Street     *string `json:"street"`
	Street2    *string `json:"street2"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postalCode"`
	Country    *string `json:"country"`
	Phone      *string `json:"phone"`
	IsDefault  *bool   `json:"isDefault"`
}

func (in Input) apply(a *domain.Address) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.Label, in.Label)
	set(&a.FirstName, in.FirstName)
	set(&a.LastName, in.LastName)
	set(&a.Company, in.Company)
	set(&a.Street, in.Street)
	set(&a.Street2, in.Street2)
	set(&a.City, in.City)
	set(&a.State, in.State)
	set(&a.PostalCode, in.PostalCode)
	set(&a.Country, in.Country)
	set(&a.Phone, in.Phone)
	if in.IsDefault != nil {
		a.IsDefault = *in.IsDefault
	}
	a.Country = strings.ToUpper(a.Country)
}

func validate(a *domain.Address) error {
	required := []struct {
		field, value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"street", a.Street},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"phone", a.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return domain.Invalid(r.field, r.field+" is required")
		}
	}
	if len(a.Country) != 2 || strings.Trim(a.Country, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") != "" {
		return domain.Invalid("country", "country must be a 2-letter code")
	}
	return nil
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Address, error) {
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return list, nil
}

// Get returns ErrNotFound for addresses owned by someone else.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Address, error) {
	a, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("address %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (*domain.Address, error) {
	a := &domain.Address{UserID: userID, Country: defaultCountry}
	in.apply(a)
	if a.Country == "" {
		a.Country = defaultCountry
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*domain.Address, error) {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(a)
	if err := validate(a); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	found, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("address %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
