// Package reproject converts points between EPSG spatial references. NAD83 /
// BC Albers (EPSG:3005), the geocoder's working reference, is registered on
// top of the codes wgs84 ships with, so geographic WGS84 (EPSG:4326) input
// and UTM or Web Mercator points all resolve to it.
package reproject

import (
	"errors"
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// ErrUnsupportedSRID is returned for a reference system the reprojector does not know.
var ErrUnsupportedSRID = errors.New("unsupported spatial reference")

// bcAlbers is EPSG:3005. NAD83 is taken as coincident with WGS84, which
// holds to well under a metre across British Columbia.
func bcAlbers() wgs84.ProjectedReferenceSystem {
	return wgs84.NAD83().AlbersEqualAreaConic(-126, 45, 50, 58.5, 1000000, 0)
}

// Reprojector implements domain.Reprojector. Its code registry is filled in
// New and only read afterwards, so it is safe for concurrent use.
type Reprojector struct {
	epsg *wgs84.Repository
	// scale is the coordinate precision of projected output (1000 = millimetres).
	scale float64
}

// New creates a Reprojector that rounds projected coordinates to millimetres.
func New() *Reprojector {
	epsg := wgs84.EPSG()
	epsg.Add(domain.SRIDBCAlbers, bcAlbers())
	return &Reprojector{epsg: epsg, scale: 1000}
}

// Reproject returns p expressed in toSRID. Points already in toSRID are
// returned unchanged.
func (r *Reprojector) Reproject(p domain.Point, toSRID int) (domain.Point, error) {
	if p.SRID == toSRID {
		return p, nil
	}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return domain.Point{}, fmt.Errorf("reproject %s: non-finite coordinate", p)
	}

	from, to := r.epsg.Code(p.SRID), r.epsg.Code(toSRID)
	if from == nil || to == nil {
		return domain.Point{}, fmt.Errorf("reproject SRID %d to %d: %w", p.SRID, toSRID, ErrUnsupportedSRID)
	}
	// The geocentric step folds out-of-range latitudes back onto the globe,
	// so geographic input is range-checked first.
	if _, geographic := from.(wgs84.GeographicReferenceSystem); geographic {
		if p.Y <= -90 || p.Y >= 90 || p.X < -180 || p.X > 180 {
			return domain.Point{}, fmt.Errorf("reproject %s: coordinate outside geographic range", p)
		}
	}

	x, y, _, err := wgs84.SafeTransform(from, to)(p.X, p.Y, 0)
	if err != nil {
		return domain.Point{}, fmt.Errorf("reproject %s to SRID %d: %w", p, toSRID, err)
	}
	if _, projected := to.(wgs84.ProjectedReferenceSystem); projected {
		x, y = r.round(x), r.round(y)
	}
	return domain.Point{X: x, Y: y, SRID: toSRID}, nil
}

func (r *Reprojector) round(v float64) float64 {
	return math.Round(v*r.scale) / r.scale
}
