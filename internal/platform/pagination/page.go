// Package pagination normalizes page_size and page_token list parameters.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// PageSizeParam is the query parameter for the page size.
	PageSizeParam = "page_size"
	// PageTokenParam is the query parameter for the opaque cursor.
	PageTokenParam = "page_token"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// DefaultPageSize is the list configuration shared by the REST endpoints.
var DefaultPageSize = PageSizeConfig{Default: 50, Max: 200}

// OrderByConfig configures order_by validation.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// Request is a normalized page request.
type Request struct {
	PageSize  int
	PageToken string
}

// Page is one page of results plus the cursor for the next one.
type Page[T any] struct {
	Results       []T    `json:"results"`
	NextPageToken string `json:"next_page_token"`
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int32, cfg PageSizeConfig) int {
	pageSize := int(value)
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// FromQuery reads page_size and page_token from a URL query.
func FromQuery(query url.Values, cfg PageSizeConfig) (Request, error) {
	var size int32
	if raw := strings.TrimSpace(query.Get(PageSizeParam)); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 {
			return Request{}, fmt.Errorf("invalid %s: %q", PageSizeParam, raw)
		}
		size = int32(parsed)
	}
	return Request{
		PageSize:  ClampPageSize(size, cfg),
		PageToken: strings.TrimSpace(query.Get(PageTokenParam)),
	}, nil
}

// Trim cuts a result set fetched with PageSize+1 rows down to the page and
// derives the next token from the last kept item.
func Trim[T any](items []T, pageSize int, cursor func(T) string) Page[T] {
	page := Page[T]{Results: items}
	if page.Results == nil {
		page.Results = []T{}
	}
	if len(items) > pageSize {
		page.Results = items[:pageSize]
		page.NextPageToken = cursor(items[pageSize-1])
	}
	return page
}

// NormalizeOrderBy validates order_by and applies defaults.
func NormalizeOrderBy(orderBy string, cfg OrderByConfig) (string, error) {
	if orderBy == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if orderBy == allowed {
			return orderBy, nil
		}
	}
	return "", fmt.Errorf("invalid order_by: %s", orderBy)
}
