package repository

import "strings"

// DefaultPageSize is used when the requested page size is not positive.
const DefaultPageSize = 10

// CurrencyRepository is an immutable, deduplicated, paginated view over one
// market type's instrument list. Identifiers keep their first-occurrence
// order so pagination stays deterministic.
type CurrencyRepository struct {
	instruments []string
	pageSize    int
}

// NewCurrencyRepository builds a repository from a raw identifier list.
// Duplicates are removed (first occurrence wins). The effective page size is
// the requested value if positive, else DefaultPageSize, then clamped to
// count-1 when it would otherwise reach the instrument count. The clamp is
// floored at 1 so repos with zero or one instrument never end up with a
// degenerate page size.
func NewCurrencyRepository(raw []string, pageSize int) *CurrencyRepository {
	seen := make(map[string]struct{}, len(raw))
	instruments := make([]string, 0, len(raw))
	for _, id := range raw {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		instruments = append(instruments, id)
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if count := len(instruments); count > 0 && pageSize >= count {
		pageSize = count - 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	return &CurrencyRepository{
		instruments: instruments,
		pageSize:    pageSize,
	}
}

// Page returns the 1-based page window of instrument identifiers. When filter
// is non-empty the window is applied to the sublist whose identifiers contain
// the filter as a case-insensitive substring. Out-of-range pages return an
// empty slice.
func (r *CurrencyRepository) Page(page int, filter string) []string {
	list := r.instruments
	if filter != "" {
		needle := strings.ToLower(filter)
		filtered := make([]string, 0, len(list))
		for _, id := range list {
			if strings.Contains(strings.ToLower(id), needle) {
				filtered = append(filtered, id)
			}
		}
		list = filtered
	}

	if page < 1 {
		return []string{}
	}

	start := (page - 1) * r.pageSize
	if start >= len(list) {
		return []string{}
	}
	end := start + r.pageSize
	if end > len(list) {
		end = len(list)
	}

	out := make([]string, end-start)
	copy(out, list[start:end])
	return out
}

// PageSize returns the effective page size.
func (r *CurrencyRepository) PageSize() int {
	return r.pageSize
}

// PageCount returns the number of pages over the unfiltered identifier list.
func (r *CurrencyRepository) PageCount() int {
	if len(r.instruments) == 0 {
		return 0
	}
	return (len(r.instruments) + r.pageSize - 1) / r.pageSize
}

// Len returns the number of unique instruments held.
func (r *CurrencyRepository) Len() int {
	return len(r.instruments)
}
