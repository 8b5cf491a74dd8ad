package store

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QueryFilter selects, orders and pages a module's items locally.
type QueryFilter struct {
	// Filters contains exact match filters by field name, compared on the
	// value's string form.
	Filters map[string]string
	// Sort is the field name to sort by. Empty keeps store order.
	Sort string
	// Order is the sort direction: "asc" (default) or "desc".
	Order string
	// Offset is the number of items to skip.
	Offset int
	// Limit is the maximum items to return. Zero or negative means no limit.
	Limit int
}

// QueryResult is one page of a local query.
type QueryResult struct {
	Items []Item `json:"items"`
	// Total is the number of matching items before paging.
	Total int `json:"total"`
}

// ApplyFilters returns the items matching every filter.
func ApplyFilters(items []Item, filters map[string]string) []Item {
	result := make([]Item, 0, len(items))
	for _, item := range items {
		matched := true
		for field, value := range filters {
			var itemValue string
			if field == "id" {
				itemValue = item.ID()
			} else {
				itemValue = fmt.Sprintf("%v", item[field])
			}
			if itemValue != value {
				matched = false
				break
			}
		}
		if matched {
			result = append(result, item)
		}
	}
	return result
}

// SortItems sorts items by field. Items keep their relative order on ties.
func SortItems(items []Item, field, order string) {
	if field == "" {
		return
	}
	desc := strings.EqualFold(order, "desc")
	sort.SliceStable(items, func(i, j int) bool {
		vi, vj := items[i][field], items[j][field]
		if desc {
			return CompareValues(vj, vi)
		}
		return CompareValues(vi, vj)
	})
}

// CompareValues reports whether a sorts before b. Numbers compare
// numerically across int and float types, strings and times compare
// naturally, and anything else falls back to string comparison. nil sorts
// first.
func CompareValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa < fb
		}
	}
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return va < vb
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Before(vb)
		}
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Paginate applies offset and limit and returns the page with the total
// count before paging. A negative offset is treated as 0.
func Paginate(items []Item, offset, limit int) ([]Item, int) {
	total := len(items)
	start := offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < total {
		end = start + limit
	}
	return items[start:end], total
}

// runQuery filters, sorts and pages items, which must already be copies.
func runQuery(items []Item, q QueryFilter) QueryResult {
	filtered := ApplyFilters(items, q.Filters)
	SortItems(filtered, q.Sort, q.Order)
	page, total := Paginate(filtered, q.Offset, q.Limit)
	return QueryResult{Items: page, Total: total}
}
