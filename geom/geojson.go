package geom

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/twpayne/go-polyline"
)

// LonLatCoordinates converts Earth-centred points into GeoJSON [lon, lat] positions
func LonLatCoordinates(points []Vector) [][]float64 {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		lat, lon := ToLatLon(p)
		coords = append(coords, []float64{lon, lat})
	}
	return coords
}

// LineStringFeature builds a GeoJSON LineString feature from Earth-centred points
func LineStringFeature(points []Vector, properties map[string]interface{}) *geojson.Feature {
	f := geojson.NewLineStringFeature(LonLatCoordinates(points))
	for k, v := range properties {
		f.SetProperty(k, v)
	}
	return f
}

// PointFeature builds a GeoJSON Point feature from an Earth-centred point
func PointFeature(p Vector, properties map[string]interface{}) *geojson.Feature {
	lat, lon := ToLatLon(p)
	f := geojson.NewPointFeature([]float64{lon, lat})
	for k, v := range properties {
		f.SetProperty(k, v)
	}
	return f
}

// EncodePolyline renders Earth-centred points with Google's encoded polyline algorithm (5 digit precision)
func EncodePolyline(points []Vector) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		lat, lon := ToLatLon(p)
		coords = append(coords, []float64{lat, lon})
	}
	return string(polyline.EncodeCoords(coords))
}
