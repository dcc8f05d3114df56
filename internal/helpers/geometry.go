package helpers

import (
	"vigil-worker-go/internal/models"
)

// IsPointInPolygon tests point containment with the ray-casting rule.
// Polygons with fewer than 3 vertices contain nothing. Points exactly on
// an edge are unspecified (ray-casting tie).
func IsPointInPolygon(p models.Point, polygon []models.Point) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// ClassifyZone returns the first enabled zone, in configured order, whose
// polygon contains the point. Overlapping zones are resolved by declaration
// order, not priority. Returns nil when no zone matches.
func ClassifyZone(p models.Point, zones []models.Zone) *models.Zone {
	for i := range zones {
		if !zones[i].Enabled {
			continue
		}
		if IsPointInPolygon(p, zones[i].Polygon) {
			return &zones[i]
		}
	}
	return nil
}

// BoxZoneOverlap scores how much of a box sits in a zone: 0.5 when the box
// center is inside, plus 0.125 per contained corner, capped at 1.0.
func BoxZoneOverlap(box models.BoundingBox, zone models.Zone) float64 {
	score := 0.0
	if IsPointInPolygon(box.Center(), zone.Polygon) {
		score += 0.5
	}
	for _, c := range box.Corners() {
		if IsPointInPolygon(c, zone.Polygon) {
			score += 0.125
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ZoneRiskMultiplier blends risk multipliers of all enabled zones with
// positive overlap, weighted by overlap score. Returns 1.0 when the box
// overlaps no zone.
func ZoneRiskMultiplier(box models.BoundingBox, zones []models.Zone) float64 {
	var weighted, total float64
	for _, z := range zones {
		if !z.Enabled {
			continue
		}
		overlap := BoxZoneOverlap(box, z)
		if overlap <= 0 {
			continue
		}
		weighted += overlap * z.RiskMultiplier
		total += overlap
	}
	if total == 0 {
		return 1.0
	}
	return weighted / total
}

// IOU computes intersection-over-union of two boxes, in [0,1]
func IOU(a, b models.BoundingBox) float64 {
	ix1 := maxFloat(a.X1, b.X1)
	iy1 := maxFloat(a.Y1, b.Y1)
	ix2 := minFloat(a.X2, b.X2)
	iy2 := minFloat(a.Y2, b.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}

	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp bounds v to [lo,hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
