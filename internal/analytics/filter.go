// Package analytics derives dashboard aggregates from the collection log.
package analytics

import (
	"strings"

	"github.com/sandwichproject/coordinator/internal/collections"
)

// Category narrows the records an analysis covers.
type Category string

// Supported categories.
const (
	CategoryAll            Category = "all"
	CategoryWithGroups     Category = "with-groups"
	CategoryIndividualOnly Category = "individual-only"
	CategoryOGProject      Category = "og-project"
	CategoryLocationBased  Category = "location-based"
)

// ParseCategory maps a query value onto a Category. Blank selects CategoryAll.
func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case "", CategoryAll:
		return CategoryAll, true
	case CategoryWithGroups:
		return CategoryWithGroups, true
	case CategoryIndividualOnly:
		return CategoryIndividualOnly, true
	case CategoryOGProject:
		return CategoryOGProject, true
	case CategoryLocationBased:
		return CategoryLocationBased, true
	default:
		return "", false
	}
}

// Filter holds the optional constraints of an analysis. Zero values impose nothing.
type Filter struct {
	// DateStart and DateEnd bound collectionDate inclusively by string comparison.
	DateStart string
	DateEnd   string
	// HostSubstring matches hostName case-insensitively, whitespace included.
	HostSubstring string
	MinTotal      *int
	MaxTotal      *int
	Category      Category
}

// Matches reports whether a record satisfies every constraint of the filter.
func (f Filter) Matches(record collections.Collection) bool {
	if f.DateStart != "" && record.CollectionDate < f.DateStart {
		return false
	}
	if f.DateEnd != "" && record.CollectionDate > f.DateEnd {
		return false
	}
	if f.HostSubstring != "" &&
		!strings.Contains(strings.ToLower(record.HostName), strings.ToLower(f.HostSubstring)) {
		return false
	}
	total := record.EffectiveTotal()
	if f.MinTotal != nil && total < *f.MinTotal {
		return false
	}
	if f.MaxTotal != nil && total > *f.MaxTotal {
		return false
	}
	switch f.Category {
	case CategoryWithGroups:
		return record.GroupTotal() > 0
	case CategoryIndividualOnly:
		return record.GroupTotal() == 0
	case CategoryOGProject:
		return record.IsReservedHost()
	case CategoryLocationBased:
		return !record.IsReservedHost()
	}
	return true
}

// ApplyFilter returns the matching records in their original order.
func ApplyFilter(records []collections.Collection, filter Filter) []collections.Collection {
	filtered := make([]collections.Collection, 0, len(records))
	for _, record := range records {
		if filter.Matches(record) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}
