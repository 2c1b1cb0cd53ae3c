package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodePolyline(t *testing.T) {
	points := []Vector{
		FromLatLon(38.5, -120.2),
		FromLatLon(40.7, -120.95),
		FromLatLon(43.252, -126.453),
	}
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", EncodePolyline(points))
}

func TestLineStringFeature(t *testing.T) {
	f := LineStringFeature([]Vector{FromLatLon(1, 2), FromLatLon(3, 4)}, map[string]interface{}{"found": true})
	assert.True(t, f.Geometry.IsLineString())
	assert.InDelta(t, 2.0, f.Geometry.LineString[0][0], 1e-9)
	assert.InDelta(t, 3.0, f.Geometry.LineString[1][1], 1e-9)
	assert.Equal(t, true, f.Properties["found"])
}
