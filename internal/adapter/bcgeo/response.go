package bcgeo

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

const searchTimestampLayout = "2006-01-02 15:04:05"

// BC geocoder API response types.

type featureCollection struct {
	Features        []feature `json:"features"`
	ExecutionTime   flexFloat `json:"executionTime"`
	SearchTimestamp string    `json:"searchTimestamp"`
	CRS             *crs      `json:"crs"`
}

type crs struct {
	Properties struct {
		Code flexInt `json:"code"`
	} `json:"properties"`
}

// srid is the collection's declared reference system, or def when absent.
func (fc featureCollection) srid(def int) int {
	if fc.CRS != nil && fc.CRS.Properties.Code.Valid {
		return fc.CRS.Properties.Code.Value
	}
	return def
}

type feature struct {
	Geometry   *geometry  `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [x, y]
}

type properties struct {
	FullAddress                string    `json:"fullAddress"`
	Score                      flexInt   `json:"score"`
	MatchPrecision             string    `json:"matchPrecision"`
	PrecisionPoints            flexInt   `json:"precisionPoints"`
	Faults                     []fault   `json:"faults"`
	SiteName                   string    `json:"siteName"`
	UnitDesignator             string    `json:"unitDesignator"`
	UnitNumber                 string    `json:"unitNumber"`
	UnitNumberSuffix           string    `json:"unitNumberSuffix"`
	CivicNumber                flexInt   `json:"civicNumber"`
	CivicNumberSuffix          string    `json:"civicNumberSuffix"`
	StreetName                 string    `json:"streetName"`
	StreetType                 string    `json:"streetType"`
	IsStreetTypePrefix         *flexBool `json:"isStreetTypePrefix"`
	StreetDirection            string    `json:"streetDirection"`
	IsStreetDirectionPrefix    *flexBool `json:"isStreetDirectionPrefix"`
	StreetQualifier            string    `json:"streetQualifier"`
	LocalityName               string    `json:"localityName"`
	LocalityType               string    `json:"localityType"`
	ElectoralArea              string    `json:"electoralArea"`
	ProvinceCode               string    `json:"provinceCode"`
	LocationPositionalAccuracy string    `json:"locationPositionalAccuracy"`
	LocationDescriptor         string    `json:"locationDescriptor"`
	SiteID                     string    `json:"siteID"`
	BlockID                    flexInt   `json:"blockID"`
	IntersectionName           string    `json:"intersectionName"`
	IntersectionID             string    `json:"intersectionID"`
	Degree                     flexInt   `json:"degree"`
	FullSiteDescriptor         string    `json:"fullSiteDescriptor"`
	AccessNotes                string    `json:"accessNotes"`
	SiteStatus                 string    `json:"siteStatus"`
	SiteRetireDate             string    `json:"siteRetireDate"`
	ChangeDate                 string    `json:"changeDate"`
	IsOfficial                 *flexBool `json:"isOfficial"`
	SID                        flexInt   `json:"sid"`
	YourID                     string    `json:"yourId"`
}

type fault struct {
	Value   string  `json:"value"`
	Element string  `json:"element"`
	Fault   string  `json:"fault"`
	Penalty flexInt `json:"penalty"`
}

func (f feature) isIntersection() bool {
	p := f.Properties
	return strings.EqualFold(p.MatchPrecision, string(domain.PrecisionIntersection)) || p.IntersectionID != ""
}

// toMatch maps one feature to its match variant.
func (f feature) toMatch(srid int) domain.MatchResult {
	p := f.Properties
	precision, _ := domain.ParseMatchPrecision(p.MatchPrecision)

	m := domain.MatchResult{
		Score:              p.Score.Value,
		Precision:          precision,
		PrecisionPoints:    p.PrecisionPoints.Value,
		LocalityName:       p.LocalityName,
		LocalityType:       domain.LocalityType(p.LocalityType),
		ProvinceCode:       p.ProvinceCode,
		AddressString:      p.FullAddress,
		YourID:             p.YourID,
		LocationDescriptor: domain.LocationDescriptorOf(p.LocationDescriptor),
		PositionalAccuracy: domain.PositionalAccuracyOf(p.LocationPositionalAccuracy),
	}
	for _, ft := range p.Faults {
		m.Faults = append(m.Faults, domain.Fault{
			Element: ft.Element, Fault: ft.Fault, Penalty: ft.Penalty.Value, Value: ft.Value,
		})
	}
	if f.Geometry != nil && len(f.Geometry.Coordinates) >= 2 {
		m.Location = &domain.Point{X: f.Geometry.Coordinates[0], Y: f.Geometry.Coordinates[1], SRID: srid}
	}

	if f.isIntersection() {
		return domain.NewIntersectionMatch(m, domain.Intersection{
			Name:   p.IntersectionName,
			ID:     p.IntersectionID,
			Degree: p.Degree.ptr(),
		})
	}

	addr := domain.Address{
		SiteName:              p.SiteName,
		UnitDesignator:        p.UnitDesignator,
		UnitNumber:            p.UnitNumber,
		UnitNumberSuffix:      p.UnitNumberSuffix,
		CivicNumber:           p.CivicNumber.ptr(),
		CivicNumberSuffix:     p.CivicNumberSuffix,
		StreetName:            p.StreetName,
		StreetType:            p.StreetType,
		StreetTypePrefix:      p.IsStreetTypePrefix.ptr(),
		StreetDirection:       p.StreetDirection,
		StreetDirectionPrefix: p.IsStreetDirectionPrefix.ptr(),
		StreetQualifier:       p.StreetQualifier,
		ElectoralArea:         p.ElectoralArea,
		SiteID:                p.SiteID,
		StreetSegmentID:       p.BlockID.ptr(),
		FullSiteDescriptor:    p.FullSiteDescriptor,
		NarrativeLocation:     p.AccessNotes,
		SiteStatus:            domain.PhysicalStatusOf(p.SiteStatus),
		SiteRetireDate:        parseSiteDate(p.SiteRetireDate),
		ChangeDate:            parseSiteDate(p.ChangeDate),
		Primary:               p.IsOfficial == nil || p.IsOfficial.Value,
		SID:                   p.SID.ptr(),
	}
	return domain.NewAddressMatch(m, addr)
}

// parseSiteDate reads an API date. The API marks "no date" with 9999-12-31.
func parseSiteDate(s string) *domain.Date {
	if s == "" {
		return nil
	}
	d, err := domain.ParseDate(s)
	if err != nil || d.Year() == 9999 {
		return nil
	}
	return &d
}

// The API emits numbers and booleans as JSON scalars, strings, "" or null
// depending on the field and result; the flex types accept all of them.

type flexInt struct {
	Value int
	Valid bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*f = flexInt{}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = flexInt{}
		return nil
	}
	*f = flexInt{Value: int(n), Valid: true}
	return nil
}

func (f flexInt) ptr() *int {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(n)
	return nil
}

type flexBool struct {
	Value bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		f.Value = v
	case string:
		f.Value, _ = strconv.ParseBool(v)
	}
	return nil
}

func (f *flexBool) ptr() *bool {
	if f == nil {
		return nil
	}
	v := f.Value
	return &v
}
