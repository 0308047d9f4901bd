package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// SRIDWGS84 is geographic longitude/latitude.
	SRIDWGS84 = 4326
	// SRIDBCAlbers is NAD83 / BC Albers, the engine's working reference and
	// the fixed output reference of every record.
	SRIDBCAlbers = 3005
)

// Point is a two-dimensional coordinate in the reference system named by SRID.
type Point struct {
	X    float64
	Y    float64
	SRID int
}

// String renders the point as EWKT, e.g. "SRID=3005;POINT(1195431.2 383043.9)".
func (p Point) String() string {
	return fmt.Sprintf("SRID=%d;POINT(%s %s)", p.SRID,
		strconv.FormatFloat(p.X, 'f', -1, 64),
		strconv.FormatFloat(p.Y, 'f', -1, 64))
}

type pointJSON struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	SRID        int        `json:"srid"`
}

// MarshalJSON writes a GeoJSON point carrying its SRID.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(pointJSON{Type: "Point", Coordinates: [2]float64{p.X, p.Y}, SRID: p.SRID})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var pj pointJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	p.X, p.Y, p.SRID = pj.Coordinates[0], pj.Coordinates[1], pj.SRID
	return nil
}

// BBox is a rectangular filter in the output reference system.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}
