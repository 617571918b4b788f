package companies

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("company not found")
	// ErrConflict is returned by Create when another writer already owns the
	// symbol. Resolve retries the lookup when it sees this.
	ErrConflict = errors.New("company already exists")
)

type Company struct {
	ID        int64
	ULID      string
	Symbol    string
	Name      string
	MarketCap *float64
	Sector    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ResolveParams struct {
	Symbol    string
	Name      string
	MarketCap *float64
	Sector    *string
}

type Filters struct {
	Query  string
	Sector string
}

type Pagination struct {
	Limit int
	After string
	Sort  string
	Order string
}

type ListResult struct {
	Companies  []Company
	NextCursor string
}

type Repository interface {
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	GetBySymbol(ctx context.Context, symbol string) (*Company, error)
	Create(ctx context.Context, params ResolveParams) (*Company, error)
}
