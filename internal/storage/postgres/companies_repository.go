package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Fairlead-Analytics/riskserver/internal/api/pagination"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/ids"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
)

var _ companies.Repository = (*CompanyRepository)(nil)

const companyColumns = `id, ulid, symbol, name, market_cap, sector, created_at, updated_at`

func (r *CompanyRepository) GetBySymbol(ctx context.Context, symbol string) (*companies.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE symbol = $1`

	start := time.Now()
	company, err := scanCompany(r.queryer().QueryRow(ctx, query, symbol))
	metrics.RecordQuery("company_get", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, companies.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company %s: %w", symbol, err)
	}
	return company, nil
}

// Create inserts a company, relying on the symbol unique constraint to
// serialize concurrent first sightings. ON CONFLICT DO NOTHING keeps the
// enclosing transaction usable when another writer wins, so the caller's
// conflict-retry lookup works inside per-record transactions.
func (r *CompanyRepository) Create(ctx context.Context, params companies.ResolveParams) (*companies.Company, error) {
	ulid, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate ulid: %w", err)
	}

	query := `
		INSERT INTO companies (ulid, symbol, name, market_cap, sector)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO NOTHING
		RETURNING ` + companyColumns

	start := time.Now()
	row := r.queryer().QueryRow(ctx, query,
		ulid, params.Symbol, params.Name, params.MarketCap, params.Sector)

	company, err := scanCompany(row)
	metrics.RecordQuery("company_create", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, companies.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create company %s: %w", params.Symbol, err)
	}
	return company, nil
}

func (r *CompanyRepository) List(ctx context.Context, filters companies.Filters, paginationArgs companies.Pagination) (_ companies.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("company_list", start, err) }()

	limit := paginationArgs.Limit
	if limit <= 0 {
		limit = 20
	}

	var conditions []string
	var args []any
	next := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != "" {
		placeholder := next("%" + filters.Query + "%")
		conditions = append(conditions, fmt.Sprintf("(symbol ILIKE %s OR name ILIKE %s)", placeholder, placeholder))
	}
	if filters.Sector != "" {
		conditions = append(conditions, fmt.Sprintf("sector = %s", next(filters.Sector)))
	}

	var orderBy string
	if paginationArgs.Sort == companies.SortName {
		if paginationArgs.After != "" {
			cursor, err := pagination.DecodeNameCursor(paginationArgs.After)
			if err != nil {
				return companies.ListResult{}, err
			}
			if paginationArgs.Order == "desc" {
				conditions = append(conditions, fmt.Sprintf("(name, ulid) < (%s, %s)", next(cursor.Name), next(cursor.ULID)))
			} else {
				conditions = append(conditions, fmt.Sprintf("(name, ulid) > (%s, %s)", next(cursor.Name), next(cursor.ULID)))
			}
		}
		if paginationArgs.Order == "desc" {
			orderBy = "name DESC, ulid DESC"
		} else {
			orderBy = "name ASC, ulid ASC"
		}
	} else {
		if paginationArgs.After != "" {
			cursor, err := pagination.DecodeCompanyCursor(paginationArgs.After)
			if err != nil {
				return companies.ListResult{}, err
			}
			if paginationArgs.Order == "asc" {
				conditions = append(conditions, fmt.Sprintf("(created_at, ulid) > (%s, %s)", next(cursor.Timestamp), next(cursor.ULID)))
			} else {
				conditions = append(conditions, fmt.Sprintf("(created_at, ulid) < (%s, %s)", next(cursor.Timestamp), next(cursor.ULID)))
			}
		}
		if paginationArgs.Order == "asc" {
			orderBy = "created_at ASC, ulid ASC"
		} else {
			orderBy = "created_at DESC, ulid DESC"
		}
	}

	query := `SELECT ` + companyColumns + ` FROM companies`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY %s LIMIT %s", orderBy, next(limit+1))

	rows, err := r.queryer().Query(ctx, query, args...)
	if err != nil {
		return companies.ListResult{}, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var items []companies.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return companies.ListResult{}, fmt.Errorf("list companies: %w", err)
		}
		items = append(items, *company)
	}
	if err := rows.Err(); err != nil {
		return companies.ListResult{}, fmt.Errorf("list companies: %w", err)
	}

	result := companies.ListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		if paginationArgs.Sort == companies.SortName {
			result.NextCursor = pagination.EncodeNameCursor(last.Name, last.ULID)
		} else {
			result.NextCursor = pagination.EncodeCompanyCursor(last.CreatedAt, last.ULID)
		}
	}
	result.Companies = items
	return result, nil
}

func scanCompany(row pgx.Row) (*companies.Company, error) {
	var c companies.Company
	err := row.Scan(&c.ID, &c.ULID, &c.Symbol, &c.Name, &c.MarketCap, &c.Sector, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type companyQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *CompanyRepository) queryer() companyQueryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}
