package places

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"outsy/internal/shared/geo"
)

// SearchFilter holds the active narrowing criteria. The zero value matches
// everything. Radius filtering needs both RadiusKm and Origin; with only one
// of them set the radius stage is skipped.
type SearchFilter struct {
	Query    string
	Category *string
	RadiusKm *float64
	Origin   *geo.Point
}

func (f SearchFilter) WithQuery(q string) SearchFilter {
	f.Query = q
	return f
}

func (f SearchFilter) WithCategory(category string) SearchFilter {
	f.Category = &category
	return f
}

func (f SearchFilter) WithoutCategory() SearchFilter {
	f.Category = nil
	return f
}

func (f SearchFilter) WithRadius(km float64) SearchFilter {
	f.RadiusKm = &km
	return f
}

func (f SearchFilter) WithoutRadius() SearchFilter {
	f.RadiusKm = nil
	return f
}

func (f SearchFilter) WithOrigin(p geo.Point) SearchFilter {
	f.Origin = &p
	return f
}

// RadiusActive reports whether the radius stage will run.
func (f SearchFilter) RadiusActive() bool {
	return f.RadiusKm != nil && f.Origin != nil
}

// IsEmpty reports whether Filter would return its input unchanged.
func (f SearchFilter) IsEmpty() bool {
	return f.Query == "" && f.Category == nil && !f.RadiusActive()
}

// Filter narrows places by text, then category, then radius. It never
// reorders and always returns a fresh slice.
func Filter(places []Place, f SearchFilter) []Place {
	out := make([]Place, 0, len(places))

	var (
		lower cases.Caser
		query string
	)
	if f.Query != "" {
		lower = cases.Lower(language.Und)
		query = lower.String(f.Query)
	}

	for _, p := range places {
		if query != "" && !matchesText(lower, p, query) {
			continue
		}
		if f.Category != nil && p.Category != *f.Category {
			continue
		}
		if f.RadiusActive() && f.Origin.DistanceKm(p.Location) > *f.RadiusKm {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Lowercasing is not case folding: "ss" does not match "ß".
func matchesText(lower cases.Caser, p Place, query string) bool {
	return strings.Contains(lower.String(p.Name), query) ||
		strings.Contains(lower.String(p.Category), query) ||
		strings.Contains(lower.String(p.Description), query)
}

// AvailableCategories lists the distinct categories of places in first-seen
// order.
func AvailableCategories(places []Place) []string {
	seen := make(map[string]struct{}, len(places))
	out := []string{}
	for _, p := range places {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// OwnedBy keeps the places whose owner is ownerID.
func OwnedBy(places []Place, ownerID string) []Place {
	out := make([]Place, 0)
	for _, p := range places {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out
}
