package geo

import (
	"github.com/golang/geo/s2"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

func toS2Point(c datastructure.Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

// DistanceMeters. great circle distance between a and b.
func DistanceMeters(a, b datastructure.Coordinate) float64 {
	return s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon)).Radians() * earthRadiusM
}

// PolylineLength sums the segment lengths of coords, in meters.
func PolylineLength(coords []datastructure.Coordinate) float64 {
	length := 0.0
	for i := 1; i < len(coords); i++ {
		length += DistanceMeters(coords[i-1], coords[i])
	}
	return length
}

// PointLinePerpendicularDistance. distance in meters from p to the segment a-b.
func PointLinePerpendicularDistance(a, b, p datastructure.Coordinate) float64 {
	return s2.DistanceFromSegment(toS2Point(p), toS2Point(a), toS2Point(b)).Radians() * earthRadiusM
}

func ProjectPointToLineCoord(a, b, p datastructure.Coordinate) datastructure.Coordinate {
	projection := s2.Project(toS2Point(p), toS2Point(a), toS2Point(b))
	ll := s2.LatLngFromPoint(projection)
	return datastructure.NewCoordinate(ll.Lat.Degrees(), ll.Lng.Degrees())
}
