package localstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kadriissam365-ops/artisanat-marocain/internal/domain"
)

// CurrencyPreference is the shopper's display currency, MAD until changed.
type CurrencyPreference struct {
	mu       sync.Mutex
	storage  Storage
	key      string
	currency domain.Currency
}

func NewCurrencyPreference(ctx context.Context, storage Storage, key string) (*CurrencyPreference, error) {
	p := &CurrencyPreference{storage: storage, key: key, currency: domain.CurrencyMAD}

	var saved string
	if err := load(ctx, storage, key, &saved); err != nil {
		return nil, fmt.Errorf("load currency: %w", err)
	}
	if c, err := domain.ParseCurrency(saved); err == nil {
		p.currency = c
	}
	return p, nil
}

func (p *CurrencyPreference) Get() domain.Currency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currency
}

func (p *CurrencyPreference) Set(ctx context.Context, c domain.Currency) error {
	parsed, err := domain.ParseCurrency(string(c))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set(ctx, parsed)
}

func (p *CurrencyPreference) set(ctx context.Context, c domain.Currency) error {
	if err := save(ctx, p.storage, p.key, string(c)); err != nil {
		return fmt.Errorf("save currency: %w", err)
	}
	p.currency = c
	return nil
}

// Toggle switches between MAD and EUR and returns the new currency.
func (p *CurrencyPreference) Toggle(ctx context.Context) (domain.Currency, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := domain.CurrencyEUR
	if p.currency == domain.CurrencyEUR {
		next = domain.CurrencyMAD
	}
	if err := p.set(ctx, next); err != nil {
		return p.currency, err
	}
	return next, nil
}

// Price picks the amount matching the current currency.
func (p *CurrencyPreference) Price(mad, eur decimal.Decimal) decimal.Decimal {
	if p.Get() == domain.CurrencyEUR {
		return eur
	}
	return mad
}
