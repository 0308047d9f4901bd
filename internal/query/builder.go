// Package query collects request parameters into a resolved, immutable
// domain.Query. Parsing and range checks happen here so that a malformed
// request is rejected before the geocoder or the projector ever run.
package query

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

const (
	defaultMaxResults = 1
	maxMaxResults     = 1000
)

// Builder accumulates one request's parameters. It is not safe for
// concurrent use; each request owns its own Builder.
type Builder struct {
	q        domain.Query
	resolved bool
}

// NewBuilder returns a builder holding the default parameter values.
func NewBuilder() *Builder {
	return &Builder{q: domain.Query{
		MaxResults:         defaultMaxResults,
		Echo:               true,
		Interpolation:      domain.InterpolationAdaptive,
		LocationDescriptor: domain.DescriptorAny,
		ProvinceCode:       domain.DefaultProvinceCode,
	}}
}

// Apply validates p and stores every supplied parameter.
func (b *Builder) Apply(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.AddressString != nil {
		b.SetAddressString(*p.AddressString)
	}
	if p.MaxResults != nil {
		b.SetMaxResults(*p.MaxResults)
	}
	if p.MinScore != nil {
		b.SetMinScore(*p.MinScore)
	}
	if p.SetBack != nil {
		b.SetSetBack(*p.SetBack)
	}
	if p.MaxDistance != nil {
		b.SetMaxDistance(*p.MaxDistance)
	}
	if p.Echo != nil {
		b.SetEcho(*p.Echo)
	}
	if p.Extrapolate != nil {
		b.SetExtrapolate(*p.Extrapolate)
	}
	if p.Localities != nil {
		b.SetLocalities(*p.Localities)
	}
	if p.NotLocalities != nil {
		b.SetNotLocalities(*p.NotLocalities)
	}

	parsed := []struct {
		v   *string
		set func(string) error
	}{
		{p.MatchPrecision, b.SetMatchPrecision},
		{p.MatchPrecisionNot, b.SetMatchPrecisionNot},
		{p.Centre, b.SetCentre},
		{p.BBox, b.SetBBox},
		{p.Interpolation, b.SetInterpolation},
		{p.LocationDescriptor, b.SetLocationDescriptor},
		{p.ParcelPoint, b.SetParcelPoint},
	}
	for _, f := range parsed {
		if f.v == nil {
			continue
		}
		if err := f.set(*f.v); err != nil {
			return err
		}
	}

	text := []struct {
		v   *string
		set func(string)
	}{
		{p.SiteName, b.SetSiteName},
		{p.UnitDesignator, b.SetUnitDesignator},
		{p.UnitNumber, b.SetUnitNumber},
		{p.UnitNumberSuffix, b.SetUnitNumberSuffix},
		{p.CivicNumber, b.SetCivicNumber},
		{p.CivicNumberSuffix, b.SetCivicNumberSuffix},
		{p.StreetName, b.SetStreetName},
		{p.StreetType, b.SetStreetType},
		{p.StreetDirection, b.SetStreetDirection},
		{p.StreetQualifier, b.SetStreetQualifier},
		{p.LocalityName, b.SetLocalityName},
		{p.YourID, b.SetYourID},
	}
	for _, f := range text {
		if f.v != nil {
			f.set(*f.v)
		}
	}
	if p.ProvinceCode != nil {
		b.SetProvinceCode(*p.ProvinceCode)
	}
	return nil
}

func (b *Builder) SetAddressString(s string) { b.q.AddressString = s }
func (b *Builder) SetMaxResults(n int)       { b.q.MaxResults = n }
func (b *Builder) SetMinScore(n int)         { b.q.MinScore = n }
func (b *Builder) SetSetBack(n int)          { b.q.SetBack = n }
func (b *Builder) SetEcho(echo bool)         { b.q.Echo = echo }
func (b *Builder) SetExtrapolate(v bool)     { b.q.Extrapolate = v }
func (b *Builder) SetYourID(s string)        { b.q.YourID = s }

// Structured address components. Each overrides the matching part parsed
// from addressString.
func (b *Builder) SetSiteName(s string)          { b.q.SiteName = s }
func (b *Builder) SetUnitDesignator(s string)    { b.q.UnitDesignator = s }
func (b *Builder) SetUnitNumber(s string)        { b.q.UnitNumber = s }
func (b *Builder) SetUnitNumberSuffix(s string)  { b.q.UnitNumberSuffix = s }
func (b *Builder) SetCivicNumber(s string)       { b.q.CivicNumber = s }
func (b *Builder) SetCivicNumberSuffix(s string) { b.q.CivicNumberSuffix = s }
func (b *Builder) SetStreetName(s string)        { b.q.StreetName = s }
func (b *Builder) SetStreetType(s string)        { b.q.StreetType = s }
func (b *Builder) SetStreetDirection(s string)   { b.q.StreetDirection = s }
func (b *Builder) SetStreetQualifier(s string)   { b.q.StreetQualifier = s }
func (b *Builder) SetLocalityName(s string)      { b.q.LocalityName = s }

func (b *Builder) SetMaxDistance(n int) {
	b.q.MaxDistance = &n
}

// SetProvinceCode stores the province; an empty value keeps the default.
func (b *Builder) SetProvinceCode(s string) {
	if s == "" {
		s = domain.DefaultProvinceCode
	}
	b.q.ProvinceCode = s
}

// SetLocalities restricts matches to the named localities. An empty list
// removes the restriction.
func (b *Builder) SetLocalities(s string) { b.q.Localities = parseLocalities(s) }

// SetNotLocalities excludes matches in the named localities.
func (b *Builder) SetNotLocalities(s string) { b.q.NotLocalities = parseLocalities(s) }

func (b *Builder) SetMatchPrecision(s string) error {
	list, err := parsePrecisionList("matchPrecision", s)
	if err != nil {
		return err
	}
	b.q.MatchPrecision = list
	return nil
}

func (b *Builder) SetMatchPrecisionNot(s string) error {
	list, err := parsePrecisionList("matchPrecisionNot", s)
	if err != nil {
		return err
	}
	b.q.MatchPrecisionNot = list
	return nil
}

// SetCentre reads "x,y" in the output reference system.
func (b *Builder) SetCentre(s string) error {
	if s == "" {
		b.q.Centre = nil
		return nil
	}
	xy, err := parseDoubles("centre", s, 2)
	if err != nil {
		return err
	}
	b.q.Centre = &domain.Point{X: xy[0], Y: xy[1], SRID: domain.SRIDBCAlbers}
	return nil
}

// SetBBox reads "xmin,ymin,xmax,ymax" in the output reference system.
func (b *Builder) SetBBox(s string) error {
	if s == "" {
		b.q.BBox = nil
		return nil
	}
	v, err := parseDoubles("bbox", s, 4)
	if err != nil {
		return err
	}
	b.q.BBox = &domain.BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	return nil
}

func (b *Builder) SetInterpolation(s string) error {
	v, err := domain.ParseInterpolation(s)
	if err != nil {
		return domain.ParamError("interpolation", "must be adaptive, linear or none", err)
	}
	b.q.Interpolation = v
	return nil
}

func (b *Builder) SetLocationDescriptor(s string) error {
	v, err := domain.ParseLocationDescriptor(s)
	if err != nil {
		return domain.ParamError("locationDescriptor", "unsupported descriptor", err)
	}
	b.q.LocationDescriptor = v
	return nil
}

// SetParcelPoint reads EWKT or "x,y". The point keeps its own SRID until
// ResolveAndValidate moves it into the engine's working reference.
func (b *Builder) SetParcelPoint(s string) error {
	if s == "" {
		b.q.ParcelPoint = nil
		return nil
	}
	p, err := parsePoint("parcelPoint", s, domain.SRIDBCAlbers)
	if err != nil {
		return err
	}
	b.q.ParcelPoint = &p
	return nil
}

// ResolveAndValidate applies the engine's consistency rules and returns the
// finished query. It runs once per request, after every parameter is set.
func (b *Builder) ResolveAndValidate(cfg domain.EngineConfig, rp domain.Reprojector) (domain.Query, error) {
	if b.resolved {
		return domain.Query{}, domain.ErrAlreadyResolved
	}
	q := b.q

	if q.Extrapolate && q.ParcelPoint == nil {
		return domain.Query{}, domain.ConsistencyError("parcelPoint", "required when extrapolate is true")
	}
	for _, p := range q.MatchPrecision {
		if slices.Contains(q.MatchPrecisionNot, p) {
			return domain.Query{}, domain.ConsistencyError("matchPrecisionNot",
				fmt.Sprintf("%s is both allowed and disallowed", p))
		}
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = maxMaxResults
	}
	if q.MaxResults > limit {
		return domain.Query{}, domain.ConsistencyError("maxResults",
			fmt.Sprintf("exceeds engine limit of %d", limit))
	}
	if q.MaxDistance != nil && q.Centre == nil {
		return domain.Query{}, domain.ConsistencyError("maxDistance", "requires centre")
	}
	if bb := q.BBox; bb != nil && (bb.MinX >= bb.MaxX || bb.MinY >= bb.MaxY) {
		return domain.Query{}, domain.ConsistencyError("bbox", "minimum must be below maximum on both axes")
	}

	if q.ParcelPoint != nil && cfg.BaseSRID != 0 && q.ParcelPoint.SRID != cfg.BaseSRID {
		if rp == nil {
			return domain.Query{}, domain.ConsistencyError("parcelPoint", "no reprojector for SRID "+fmt.Sprint(q.ParcelPoint.SRID))
		}
		p, err := rp.Reproject(*q.ParcelPoint, cfg.BaseSRID)
		if err != nil {
			reqErr := domain.ConsistencyError("parcelPoint", "cannot reproject")
			reqErr.Err = err
			return domain.Query{}, reqErr
		}
		q.ParcelPoint = &p
	}

	b.resolved = true
	return cloneQuery(q), nil
}

// cloneQuery detaches the returned query from the builder's storage.
func cloneQuery(q domain.Query) domain.Query {
	q.MatchPrecision = slices.Clone(q.MatchPrecision)
	q.MatchPrecisionNot = slices.Clone(q.MatchPrecisionNot)
	q.Localities = slices.Clone(q.Localities)
	q.NotLocalities = slices.Clone(q.NotLocalities)
	if q.Centre != nil {
		c := *q.Centre
		q.Centre = &c
	}
	if q.MaxDistance != nil {
		d := *q.MaxDistance
		q.MaxDistance = &d
	}
	if q.BBox != nil {
		bb := *q.BBox
		q.BBox = &bb
	}
	if q.ParcelPoint != nil {
		p := *q.ParcelPoint
		q.ParcelPoint = &p
	}
	return q
}
