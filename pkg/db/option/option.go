// Package option composes reusable gorm query modifiers.
package option

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/raylanfranco/whitelabel-admin/pkg/db/pagination"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(*gorm.DB) *gorm.DB

// QuerySortBy restricts ordering to an allow-listed column set.
type QuerySortBy struct {
	Field string
	Desc  bool
	Allow map[string]bool
}

// Apply runs every option against the query in order.
func Apply(query *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		query = opt(query)
	}
	return query
}

// ApplyPagination applies keyset pagination over (created_at, id). The query
// fetches one extra row so the caller can detect a next page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(query *gorm.DB) *gorm.DB {
		pageSize := p.PageSize
		if pageSize <= 0 {
			pageSize = 50
		}
		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil {
				if after, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					query = query.Where(
						"(created_at < ?) OR (created_at = ? AND id < ?)",
						after, after, cursor.ID,
					)
				}
			}
		}
		return query.Limit(pageSize + 1)
	}
}

// WithSortBy orders results by an allow-listed column, newest first default.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(query *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || (sort.Allow != nil && !sort.Allow[field]) {
			field = "created_at"
		}
		direction := "DESC"
		if !sort.Desc && field != "created_at" {
			direction = "ASC"
		}
		return query.Order(field + " " + direction + ", id DESC")
	}
}
