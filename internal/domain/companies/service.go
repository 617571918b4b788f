package companies

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	paginationpkg "github.com/Fairlead-Analytics/riskserver/internal/api/pagination"
)

var (
	ErrMissingSymbol = errors.New("stock symbol is required")
	ErrMissingName   = errors.New("company name is required")
)

const (
	SortCreatedAt = "created_at"
	SortName      = "name"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NormalizeSymbol uppercases and trims a ticker symbol. All lookups and
// creates go through the normalized form so repeat sightings of "aapl",
// "AAPL" and " Aapl " resolve to the same company.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Resolve returns the company for a symbol, creating it when absent.
// Concurrent creates of the same new symbol race on the unique constraint;
// the loser gets ErrConflict from the store and retries as a lookup.
func (s *Service) Resolve(ctx context.Context, params ResolveParams) (*Company, error) {
	symbol := NormalizeSymbol(params.Symbol)
	if symbol == "" {
		return nil, ErrMissingSymbol
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, ErrMissingName
	}
	params.Symbol = symbol
	params.Name = strings.TrimSpace(params.Name)

	company, err := s.repo.GetBySymbol(ctx, symbol)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	company, err = s.repo.Create(ctx, params)
	if err == nil {
		return company, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, err
	}
	return s.repo.GetBySymbol(ctx, symbol)
}

func (s *Service) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	return s.repo.List(ctx, filters, pagination)
}

func (s *Service) GetBySymbol(ctx context.Context, symbol string) (*Company, error) {
	normalized := NormalizeSymbol(symbol)
	if normalized == "" {
		return nil, ErrMissingSymbol
	}
	return s.repo.GetBySymbol(ctx, normalized)
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	pagination := Pagination{Limit: 20, Sort: SortCreatedAt, Order: "desc"}

	filters.Query = strings.TrimSpace(values.Get("q"))
	filters.Sector = strings.TrimSpace(values.Get("sector"))

	limit, err := parseLimit(values)
	if err != nil {
		return filters, pagination, err
	}
	pagination.Limit = limit

	switch sort := strings.TrimSpace(values.Get("sort")); sort {
	case "", SortCreatedAt:
		pagination.Sort = SortCreatedAt
	case SortName:
		pagination.Sort = SortName
		pagination.Order = "asc"
	default:
		return filters, pagination, FilterError{Field: "sort", Message: "must be created_at or name"}
	}

	switch order := strings.TrimSpace(values.Get("order")); order {
	case "":
	case "asc", "desc":
		pagination.Order = order
	default:
		return filters, pagination, FilterError{Field: "order", Message: "must be asc or desc"}
	}

	after := strings.TrimSpace(values.Get("after"))
	if after != "" {
		// Validate cursor format by attempting to decode it
		var err error
		if pagination.Sort == SortName {
			_, err = paginationpkg.DecodeNameCursor(after)
		} else {
			_, err = paginationpkg.DecodeCompanyCursor(after)
		}
		if err != nil {
			return filters, pagination, FilterError{Field: "after", Message: "must be a valid cursor"}
		}
	}
	pagination.After = after

	return filters, pagination, nil
}

func parseLimit(values url.Values) (int, error) {
	limit := 20
	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit == "" {
		return limit, nil
	}
	parsed, err := strconv.Atoi(rawLimit)
	if err != nil {
		return 0, FilterError{Field: "limit", Message: "must be a number"}
	}
	if parsed < 1 || parsed > 100 {
		return 0, FilterError{Field: "limit", Message: "must be between 1 and 100"}
	}
	return parsed, nil
}
