package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidPage    = errors.New("pagination: page must be a positive integer")
	ErrInvalidLimit   = errors.New("pagination: limit must be a positive integer")
	ErrInvalidSortBy  = errors.New("pagination: unsupported sortBy")
	ErrInvalidOrderBy = errors.New("pagination: order must be asc or desc")
)

// Params is the page/limit/sort triple accepted by listing endpoints.
// Zero Page or Limit means the caller did not send one; services apply their own defaults.
type Params struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// Options restricts what a route accepts. An empty SortFields rejects any sortBy.
type Options struct {
	MaxLimit   int
	SortFields []string
}

// Parse reads page, limit, sortBy and order from the query string.
func Parse(values url.Values, opts Options) (Params, error) {
	var params Params
	var err error

	if params.Page, err = positiveInt(values.Get("page")); err != nil {
		return Params{}, ErrInvalidPage
	}
	if params.Limit, err = positiveInt(values.Get("limit")); err != nil {
		return Params{}, ErrInvalidLimit
	}
	if opts.MaxLimit > 0 && params.Limit > opts.MaxLimit {
		params.Limit = opts.MaxLimit
	}

	if sortBy := strings.TrimSpace(values.Get("sortBy")); sortBy != "" {
		if !contains(opts.SortFields, sortBy) {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidSortBy, sortBy)
		}
		params.SortBy = sortBy
	}

	switch order := strings.ToLower(strings.TrimSpace(values.Get("order"))); order {
	case "":
	case "asc", "desc":
		params.Order = order
	default:
		return Params{}, ErrInvalidOrderBy
	}
	return params, nil
}

func positiveInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
