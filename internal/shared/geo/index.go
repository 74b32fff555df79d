package geo

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	// widens the prefilter box so float error never drops a point the exact check keeps
	boxMarginDeg = 1e-6
)

type indexedPoint struct {
	pos  int
	at   Point
	rect *rtreego.Rect
}

func (ip *indexedPoint) Bounds() *rtreego.Rect {
	return ip.rect
}

// Index is an immutable R-tree over a slice of points. Results are reported
// as positions into the slice the index was built from, in ascending order.
// Points outside the legal lat/lng ranges still have a haversine distance but
// no place in the tree's coordinate space, so their presence turns every
// query into a linear scan.
type Index struct {
	tree     *rtreego.Rtree
	points   []Point
	allValid bool
}

// NewIndex builds an index over points.
func NewIndex(points []Point) *Index {
	idx := &Index{
		tree:     rtreego.NewTree(dimensions, minChildren, maxChildren),
		points:   points,
		allValid: true,
	}
	for i, p := range points {
		if !p.Valid() {
			idx.allValid = false
		}
		idx.tree.Insert(&indexedPoint{
			pos:  i,
			at:   p,
			rect: rtreego.Point{p.Lat, p.Lng}.ToRect(tolerance),
		})
	}
	return idx
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	return len(idx.points)
}

// Within returns the positions of every point whose haversine distance from
// origin is <= radiusKm.
func (idx *Index) Within(origin Point, radiusKm float64) []int {
	if radiusKm < 0 || math.IsNaN(radiusKm) || len(idx.points) == 0 {
		return nil
	}

	if !idx.allValid {
		return idx.scan(origin, radiusKm)
	}

	bounds, ok := searchBox(origin, radiusKm)
	if !ok {
		return idx.scan(origin, radiusKm)
	}

	var hits []int
	for _, s := range idx.tree.SearchIntersect(bounds) {
		item, ok := s.(*indexedPoint)
		if !ok {
			continue
		}
		if origin.DistanceKm(item.at) <= radiusKm {
			hits = append(hits, item.pos)
		}
	}
	sort.Ints(hits)
	return hits
}

func (idx *Index) scan(origin Point, radiusKm float64) []int {
	var hits []int
	for i, p := range idx.points {
		if origin.DistanceKm(p) <= radiusKm {
			hits = append(hits, i)
		}
	}
	return hits
}

// searchBox returns a lat/lng box that contains every point within radiusKm
// of origin. ok is false when no such box exists without wrapping the
// antimeridian or covering a pole; callers fall back to a linear scan.
func searchBox(origin Point, radiusKm float64) (*rtreego.Rect, bool) {
	angular := radiusKm / EarthRadiusKm
	if angular >= math.Pi/2 {
		return nil, false
	}

	dLat := angular*180/math.Pi + boxMarginDeg
	minLat, maxLat := origin.Lat-dLat, origin.Lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return nil, false
	}

	cosLat := math.Cos(radians(origin.Lat))
	if math.Sin(angular) >= cosLat {
		return nil, false
	}
	dLng := math.Asin(math.Sin(angular)/cosLat)*180/math.Pi + boxMarginDeg
	minLng, maxLng := origin.Lng-dLng, origin.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		return nil, false
	}

	rect, err := rtreego.NewRect(rtreego.Point{minLat, minLng}, []float64{maxLat - minLat, maxLng - minLng})
	if err != nil {
		return nil, false
	}
	return rect, true
}
