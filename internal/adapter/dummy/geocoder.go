// Package dummy is a deterministic stand-in for the matching engine. It backs
// dry-run requests and tests: the same query always yields the same matches,
// and no network or reference data is involved.
package dummy

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// victoria is downtown Victoria in BC Albers, used for every synthetic match
// that has no parcel point to extrapolate from.
var victoria = domain.Point{X: 1194987.163, Y: 381636.370, SRID: domain.SRIDBCAlbers}

// idSpace namespaces the name-based UUIDs handed out as site and intersection IDs.
var idSpace = uuid.MustParse("6f1c2b8e-3d4a-4c5b-9e7f-0a1b2c3d4e5f")

var streetTypes = map[string]bool{
	"st": true, "ave": true, "rd": true, "blvd": true, "dr": true,
	"way": true, "pl": true, "cres": true, "hwy": true, "lane": true,
}

// Geocoder implements domain.Geocoder without a real engine.
type Geocoder struct {
	config domain.EngineConfig
}

// New returns a stand-in engine using the default engine configuration.
func New() *Geocoder {
	return &Geocoder{config: domain.DefaultEngineConfig()}
}

func (g *Geocoder) Geocode(ctx context.Context, q domain.Query) (domain.SearchResults, error) {
	if err := ctx.Err(); err != nil {
		return domain.SearchResults{}, err
	}
	return Results(q), nil
}

func (g *Geocoder) EngineConfig() domain.EngineConfig { return g.config }

// PresentationConfig is always nil: dry runs carry no KML styling.
func (g *Geocoder) PresentationConfig() *domain.PresentationConfig { return nil }

// Results produces the synthetic matches for q.
func Results(q domain.Query) domain.SearchResults {
	start := domain.Now()

	text := strings.TrimSpace(q.AddressString)
	if text == "" {
		text = structuredText(q)
	}

	var candidates []domain.MatchResult
	if isIntersection(text) {
		candidates = append(candidates, intersectionMatch(q, text))
	} else {
		candidates = append(candidates, addressMatch(q, text))
	}
	if loc := localityOf(q, text); loc != "" {
		candidates = append(candidates, localityMatch(q, loc))
	}

	matches := make([]domain.MatchResult, 0, len(candidates))
	for _, m := range candidates {
		if len(matches) >= q.MaxResults {
			break
		}
		if accepts(q, m) {
			matches = append(matches, m)
		}
	}

	return domain.SearchResults{
		Matches:         matches,
		ExecutionTime:   domain.ElapsedMillis(start),
		SearchTimestamp: start,
	}
}

func accepts(q domain.Query, m domain.MatchResult) bool {
	if m.Score < q.MinScore {
		return false
	}
	if len(q.MatchPrecision) > 0 && !slices.Contains(q.MatchPrecision, m.Precision) {
		return false
	}
	if slices.Contains(q.MatchPrecisionNot, m.Precision) {
		return false
	}
	if len(q.Localities) > 0 && !slices.Contains(q.Localities, strings.ToLower(m.LocalityName)) {
		return false
	}
	return !slices.Contains(q.NotLocalities, strings.ToLower(m.LocalityName))
}

func structuredText(q domain.Query) string {
	street := strings.Join(nonEmpty(q.CivicNumber+q.CivicNumberSuffix, q.StreetName, q.StreetType, q.StreetDirection), " ")
	return strings.Join(nonEmpty(q.SiteName, street, q.LocalityName), ", ")
}

func isIntersection(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, " and ") || strings.Contains(lower, " & ")
}

func base(q domain.Query, text string) domain.MatchResult {
	m := domain.MatchResult{
		LocalityName:       localityOf(q, text),
		LocalityType:       "City",
		ProvinceCode:       q.ProvinceCode,
		YourID:             q.YourID,
		PositionalAccuracy: domain.AccuracyHigh,
	}
	loc := victoria
	if q.Extrapolate && q.ParcelPoint != nil {
		loc = *q.ParcelPoint
	}
	m.Location = &loc
	return m
}

func addressMatch(q domain.Query, text string) domain.MatchResult {
	m := base(q, text)
	streetPart, _, _ := strings.Cut(text, ",")
	fields := strings.Fields(streetPart)

	var addr domain.Address
	addr.SiteName = q.SiteName
	addr.UnitDesignator = q.UnitDesignator
	addr.UnitNumber = q.UnitNumber
	addr.UnitNumberSuffix = q.UnitNumberSuffix
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			addr.CivicNumber = &n
			fields = fields[1:]
		}
	}
	if len(fields) > 1 && streetTypes[strings.ToLower(fields[len(fields)-1])] {
		addr.StreetType = fields[len(fields)-1]
		prefix := false
		addr.StreetTypePrefix = &prefix
		fields = fields[:len(fields)-1]
	}
	addr.StreetName = strings.Join(fields, " ")
	addr.StreetDirection = q.StreetDirection
	addr.StreetQualifier = q.StreetQualifier
	addr.SiteStatus = domain.StatusActive
	addr.Primary = true

	switch {
	case addr.CivicNumber != nil:
		m.Precision = domain.PrecisionCivicNumber
		m.PrecisionPoints = 100
		m.Score = 100
		m.LocationDescriptor = descriptor(q, domain.DescriptorParcelPoint)
	case addr.StreetName != "":
		m.Precision = domain.PrecisionStreet
		m.PrecisionPoints = 78
		m.Faults = domain.Faults{{Element: "CIVIC_NUMBER", Fault: "missing", Penalty: 10}}
		m.Score = 68
		m.LocationDescriptor = domain.DescriptorStreetPoint
		m.PositionalAccuracy = domain.AccuracyMedium
	default:
		m.Precision = domain.PrecisionProvince
		m.PrecisionPoints = 1
		m.Faults = domain.Faults{{Element: "ADDRESS", Fault: "notMatched", Penalty: 99}}
		m.Score = 1
		m.LocationDescriptor = domain.DescriptorProvincePoint
		m.PositionalAccuracy = domain.AccuracyCoarse
	}

	m.AddressString = strings.Join(nonEmpty(
		strings.Join(nonEmpty(civic(addr.CivicNumber), addr.StreetName, addr.StreetType), " "),
		m.LocalityName, m.ProvinceCode), ", ")
	if m.Precision == domain.PrecisionCivicNumber {
		addr.SiteID = uuid.NewSHA1(idSpace, []byte(strings.ToLower(m.AddressString))).String()
		addr.FullSiteDescriptor = strings.Join(nonEmpty(addr.SiteName, strings.TrimSpace(addr.UnitDesignator+" "+addr.UnitNumber+addr.UnitNumberSuffix)), " -- ")
	}
	return domain.NewAddressMatch(m, addr)
}

func intersectionMatch(q domain.Query, text string) domain.MatchResult {
	m := base(q, text)
	name, _, _ := strings.Cut(text, ",")
	name = strings.TrimSpace(strings.ReplaceAll(name, " & ", " and "))

	m.Precision = domain.PrecisionIntersection
	m.PrecisionPoints = 99
	m.Score = 99
	m.LocationDescriptor = domain.DescriptorIntersectionPoint
	m.AddressString = strings.Join(nonEmpty(name, m.LocalityName, m.ProvinceCode), ", ")

	degree := 4
	return domain.NewIntersectionMatch(m, domain.Intersection{
		Name:   name,
		ID:     uuid.NewSHA1(idSpace, []byte(strings.ToLower(name))).String(),
		Degree: &degree,
	})
}

// localityMatch is the low-scoring fallback candidate for the named locality.
func localityMatch(q domain.Query, locality string) domain.MatchResult {
	m := base(q, locality)
	m.LocalityName = locality
	m.Precision = domain.PrecisionLocality
	m.PrecisionPoints = 68
	m.Score = 58
	m.Faults = domain.Faults{{Element: "STREET", Fault: "notMatched", Penalty: 10}}
	m.LocationDescriptor = domain.DescriptorLocalityPoint
	m.PositionalAccuracy = domain.AccuracyCoarse
	m.AddressString = strings.Join(nonEmpty(locality, m.ProvinceCode), ", ")
	return domain.NewAddressMatch(m, domain.Address{SiteStatus: domain.StatusActive, Primary: true})
}

func localityOf(q domain.Query, text string) string {
	if q.LocalityName != "" {
		return q.LocalityName
	}
	parts := strings.Split(text, ",")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func descriptor(q domain.Query, fallback domain.LocationDescriptor) domain.LocationDescriptor {
	if q.LocationDescriptor == "" || q.LocationDescriptor == domain.DescriptorAny {
		return fallback
	}
	return q.LocationDescriptor
}

func civic(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func nonEmpty(items ...string) []string {
	out := items[:0:0]
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
