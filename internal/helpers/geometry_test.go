package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil-worker-go/internal/models"
)

func unitSquare() []models.Point {
	return []models.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
}

func TestIsPointInPolygonDegenerate(t *testing.T) {
	for _, polygon := range [][]models.Point{
		nil,
		{},
		{{X: 0.5, Y: 0.5}},
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
	} {
		assert.False(t, IsPointInPolygon(models.Point{X: 0.5, Y: 0.5}, polygon))
	}
}

func TestIsPointInPolygonSquare(t *testing.T) {
	square := unitSquare()

	assert.True(t, IsPointInPolygon(models.Point{X: 0.5, Y: 0.5}, square))
	assert.False(t, IsPointInPolygon(models.Point{X: 1.5, Y: 0.5}, square))
	assert.False(t, IsPointInPolygon(models.Point{X: -0.1, Y: 0.5}, square))
}

func TestIsPointInPolygonConcave(t *testing.T) {
	// L-shape: the notch at the top right is outside
	l := []models.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 0.5},
		{X: 0.5, Y: 0.5}, {X: 0.5, Y: 1}, {X: 0, Y: 1},
	}

	assert.True(t, IsPointInPolygon(models.Point{X: 0.25, Y: 0.75}, l))
	assert.False(t, IsPointInPolygon(models.Point{X: 0.75, Y: 0.75}, l))
}

func TestClassifyZoneDeclarationOrder(t *testing.T) {
	zones := []models.Zone{
		{ID: "z1", Type: models.ZoneTypeExit, Polygon: unitSquare(), Enabled: true},
		{ID: "z2", Type: models.ZoneTypeCheckout, Polygon: unitSquare(), Enabled: true},
	}

	z := ClassifyZone(models.Point{X: 0.5, Y: 0.5}, zones)
	require.NotNil(t, z)
	assert.Equal(t, "z1", z.ID)
}

func TestClassifyZoneSkipsDisabled(t *testing.T) {
	zones := []models.Zone{
		{ID: "z1", Type: models.ZoneTypeExit, Polygon: unitSquare(), Enabled: false},
		{ID: "z2", Type: models.ZoneTypeCheckout, Polygon: unitSquare(), Enabled: true},
	}

	z := ClassifyZone(models.Point{X: 0.5, Y: 0.5}, zones)
	require.NotNil(t, z)
	assert.Equal(t, "z2", z.ID)

	assert.Nil(t, ClassifyZone(models.Point{X: 2, Y: 2}, zones))
}

func TestBoxZoneOverlap(t *testing.T) {
	zone := models.Zone{Polygon: unitSquare(), Enabled: true}

	// Fully contained: center + 4 corners = 1.0
	inside := models.BoundingBox{X1: 0.2, Y1: 0.2, X2: 0.4, Y2: 0.4}
	assert.InDelta(t, 1.0, BoxZoneOverlap(inside, zone), 1e-9)

	// Fully outside
	outside := models.BoundingBox{X1: 2, Y1: 2, X2: 3, Y2: 3}
	assert.Zero(t, BoxZoneOverlap(outside, zone))
}

func TestZoneRiskMultiplier(t *testing.T) {
	zones := []models.Zone{
		{ID: "ht", Type: models.ZoneTypeHighTheft, Polygon: unitSquare(), RiskMultiplier: 2.0, Enabled: true},
	}

	inside := models.BoundingBox{X1: 0.2, Y1: 0.2, X2: 0.4, Y2: 0.4}
	assert.InDelta(t, 2.0, ZoneRiskMultiplier(inside, zones), 1e-9)

	outside := models.BoundingBox{X1: 2, Y1: 2, X2: 3, Y2: 3}
	assert.InDelta(t, 1.0, ZoneRiskMultiplier(outside, zones), 1e-9)

	// Disabled zones never contribute
	zones[0].Enabled = false
	assert.InDelta(t, 1.0, ZoneRiskMultiplier(inside, zones), 1e-9)
}

func TestIOU(t *testing.T) {
	a := models.BoundingBox{X1: 0, Y1: 0, X2: 1, Y2: 1}

	assert.InDelta(t, 1.0, IOU(a, a), 1e-9)

	disjoint := models.BoundingBox{X1: 2, Y1: 2, X2: 3, Y2: 3}
	assert.Zero(t, IOU(a, disjoint))

	// Half overlap: inter 0.5, union 1.5
	half := models.BoundingBox{X1: 0.5, Y1: 0, X2: 1.5, Y2: 1}
	assert.InDelta(t, 0.5/1.5, IOU(a, half), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(140, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}
