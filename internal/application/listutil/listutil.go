package listutil

import (
	"net/url"
	"sort"
	"strings"
)

// SortParams carries sorting parameters parsed from a request.
type SortParams struct {
	Sort string // column name
	Dir  string // "asc" or "desc"
}

// FilterParams carries search and filter parameters.
type FilterParams struct {
	Search  string            // free-text search query
	Filters map[string]string // exact-match filters (e.g. status=aktiv)
}

// ListParams combines all list view parameters.
type ListParams struct {
	SortParams
	FilterParams
}

// ParseSortParams extracts sort and dir from URL query values.
// PRE: none
// POST: returns SortParams; Dir is always "asc" or "desc"
func ParseSortParams(q url.Values, allowedColumns []string) SortParams {
	sort := q.Get("sort")
	dir := q.Get("dir")

	if !isAllowedColumn(sort, allowedColumns) {
		sort = ""
	}
	if dir != "asc" && dir != "desc" {
		dir = "asc"
	}
	return SortParams{Sort: sort, Dir: dir}
}

// ParseFilterParams extracts search and named filters from URL query values.
// PRE: filterKeys lists the allowed filter parameter names
// POST: returns FilterParams with only recognised keys
func ParseFilterParams(q url.Values, filterKeys []string) FilterParams {
	fp := FilterParams{
		Search:  strings.TrimSpace(q.Get("q")),
		Filters: make(map[string]string),
	}
	for _, key := range filterKeys {
		if v := q.Get(key); v != "" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// ParseListParams parses all list parameters from URL query values.
func ParseListParams(q url.Values, allowedSortCols []string, filterKeys []string) ListParams {
	return ListParams{
		SortParams:   ParseSortParams(q, allowedSortCols),
		FilterParams: ParseFilterParams(q, filterKeys),
	}
}

// Columns maps sortable column names to the text a row is ordered by.
type Columns[T any] map[string]func(T) string

// Names returns the column names, sorted, for ParseSortParams.
func (c Columns[T]) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply orders rows in place by the chosen column, case-insensitively.
// Rows with equal keys keep their order; an empty Sort leaves rows untouched.
// PRE: p came from ParseSortParams with c.Names()
// POST: rows are ordered by p.Sort in direction p.Dir
func (c Columns[T]) Apply(rows []T, p SortParams) {
	key, ok := c[p.Sort]
	if !ok {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(key(rows[i])), strings.ToLower(key(rows[j]))
		if p.Dir == "desc" {
			return a > b
		}
		return a < b
	})
}

// Keep returns the rows for which match is true.
func Keep[T any](rows []T, match func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func isAllowedColumn(col string, allowed []string) bool {
	for _, a := range allowed {
		if col == a {
			return true
		}
	}
	return false
}
