// Package projector flattens geocoder matches into fixed-schema output records.
package projector

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// Customization keys understood by the KML serializer.
const (
	KeyStyleURL          = "kmlStyleUrl"
	KeyPlaceMarkName     = "kmlPlaceMarkNameAttribute"
	KeyLookAtMinRange    = "kmlLookAtMinRange"
	KeyLookAtMaxRange    = "kmlLookAtMaxRange"
	KeySnippet           = "kmlSnippet"
	placeMarkNameDefault = "fullAddress"
)

// Projector maps matches to records. It holds only read-only state and is
// safe for concurrent use.
type Projector struct {
	outputSRID   int
	reprojector  domain.Reprojector
	presentation *domain.PresentationConfig
	logger       *slog.Logger
}

// New creates a Projector writing locations in outputSRID. presentation may
// be nil, in which case the configuration-dependent customization keys are
// omitted.
func New(outputSRID int, rp domain.Reprojector, presentation *domain.PresentationConfig, logger *slog.Logger) *Projector {
	return &Projector{
		outputSRID:   outputSRID,
		reprojector:  rp,
		presentation: presentation,
		logger:       logger,
	}
}

// Project builds the output record for one match. Missing fields take their
// documented default; Project never fails.
func (p *Projector) Project(m domain.MatchResult, sr domain.SearchResults) domain.Record {
	rec := domain.Record{
		YourID:                     m.YourID,
		FullAddress:                m.AddressString,
		Score:                      m.Score,
		MatchPrecision:             m.Precision,
		PrecisionPoints:            m.PrecisionPoints,
		Faults:                     m.Faults.String(),
		LocalityName:               m.LocalityName,
		LocalityType:               m.LocalityType,
		ProvinceCode:               m.ProvinceCode,
		Location:                   p.location(m),
		LocationPositionalAccuracy: m.PositionalAccuracy,
		LocationDescriptor:         m.LocationDescriptor,
		SiteStatus:                 domain.StatusActive,
		IsOfficial:                 true,
		ExecutionTime:              sr.ExecutionTime,
	}

	switch m.Kind {
	case domain.MatchKindAddress:
		if m.Address != nil {
			projectAddress(&rec, m.Address)
		}
	case domain.MatchKindIntersection:
		if m.Intersection != nil {
			rec.IntersectionName = m.Intersection.Name
			rec.IntersectionID = m.Intersection.ID
			rec.Degree = cloneInt(m.Intersection.Degree)
		}
	case domain.MatchKindUnknown:
	}
	return rec
}

func projectAddress(rec *domain.Record, a *domain.Address) {
	rec.SiteName = a.SiteName
	rec.UnitDesignator = a.UnitDesignator
	rec.UnitNumber = a.UnitNumber
	rec.UnitNumberSuffix = a.UnitNumberSuffix
	if a.CivicNumber != nil {
		rec.CivicNumber = strconv.Itoa(*a.CivicNumber)
	}
	rec.CivicNumberSuffix = a.CivicNumberSuffix
	rec.StreetName = a.StreetName
	rec.StreetType = a.StreetType
	if a.StreetTypePrefix != nil {
		rec.IsStreetTypePrefix = *a.StreetTypePrefix
	}
	rec.StreetDirection = a.StreetDirection
	if a.StreetDirectionPrefix != nil {
		rec.IsStreetDirectionPrefix = *a.StreetDirectionPrefix
	}
	rec.StreetQualifier = a.StreetQualifier
	rec.ElectoralArea = a.ElectoralArea
	rec.SiteID = a.SiteID
	rec.BlockID = cloneInt(a.StreetSegmentID)
	rec.FullSiteDescriptor = a.FullSiteDescriptor
	rec.AccessNotes = a.NarrativeLocation
	if a.SiteStatus != "" {
		rec.SiteStatus = a.SiteStatus
	}
	rec.SiteRetireDate = cloneDate(a.SiteRetireDate)
	rec.ChangeDate = cloneDate(a.ChangeDate)
	rec.IsOfficial = a.Primary
	rec.InternalSequenceID = cloneInt(a.SID)
}

// location returns the match point in the output reference system, or nil
// when the match has none or it cannot be moved there.
func (p *Projector) location(m domain.MatchResult) *domain.Point {
	if m.Location == nil {
		return nil
	}
	pt := domain.Point{X: m.Location.X, Y: m.Location.Y, SRID: m.Location.SRID}
	if pt.SRID == 0 || pt.SRID == p.outputSRID {
		pt.SRID = p.outputSRID
		return &pt
	}
	if p.reprojector == nil {
		p.logger.Warn("no reprojector, dropping location",
			"from_srid", pt.SRID, "to_srid", p.outputSRID, "your_id", m.YourID)
		return nil
	}
	out, err := p.reprojector.Reproject(pt, p.outputSRID)
	if err != nil {
		p.logger.Warn("reproject location failed, dropping location",
			"error", err, "from_srid", pt.SRID, "to_srid", p.outputSRID, "your_id", m.YourID)
		return nil
	}
	return &out
}

// Customization returns the per-record presentation hints for m.
func (p *Projector) Customization(m domain.MatchResult) map[string]any {
	props := map[string]any{
		KeyPlaceMarkName: placeMarkNameDefault,
		KeySnippet:       fmt.Sprintf("Score: %d  Precision: %s", m.Score, m.Precision),
	}
	if p.presentation == nil {
		return props
	}
	if m.Kind == domain.MatchKindAddress || m.Kind == domain.MatchKindIntersection {
		props[KeyStyleURL] = fmt.Sprintf("%s#geocoded_%s_%s",
			p.presentation.KMLStylesURL, m.LocationDescriptor, m.PositionalAccuracy)
	}
	props[KeyLookAtMinRange] = p.presentation.DefaultLookAtRange
	props[KeyLookAtMaxRange] = p.presentation.DefaultLookAtRange
	return props
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func cloneDate(d *domain.Date) *domain.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
