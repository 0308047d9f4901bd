package domain

import (
	"strconv"
)

// Record is one flattened output row. Every field is always present; fields
// that do not apply to a match variant hold their documented default.
type Record struct {
	YourID                     string             `json:"yourId"`
	FullAddress                string             `json:"fullAddress"`
	IntersectionName           string             `json:"intersectionName"`
	Score                      int                `json:"score"`
	MatchPrecision             MatchPrecision     `json:"matchPrecision"`
	PrecisionPoints            int                `json:"precisionPoints"`
	Faults                     string             `json:"faults"`
	SiteName                   string             `json:"siteName"`
	UnitDesignator             string             `json:"unitDesignator"`
	UnitNumber                 string             `json:"unitNumber"`
	UnitNumberSuffix           string             `json:"unitNumberSuffix"`
	CivicNumber                string             `json:"civicNumber"`
	CivicNumberSuffix          string             `json:"civicNumberSuffix"`
	StreetName                 string             `json:"streetName"`
	StreetType                 string             `json:"streetType"`
	IsStreetTypePrefix         bool               `json:"isStreetTypePrefix"`
	StreetDirection            string             `json:"streetDirection"`
	IsStreetDirectionPrefix    bool               `json:"isStreetDirectionPrefix"`
	StreetQualifier            string             `json:"streetQualifier"`
	LocalityName               string             `json:"localityName"`
	LocalityType               LocalityType       `json:"localityType"`
	ElectoralArea              string             `json:"electoralArea"`
	ProvinceCode               string             `json:"provinceCode"`
	Location                   *Point             `json:"location"`
	LocationPositionalAccuracy PositionalAccuracy `json:"locationPositionalAccuracy"`
	LocationDescriptor         LocationDescriptor `json:"locationDescriptor"`
	SiteID                     string             `json:"siteID"`
	BlockID                    *int               `json:"blockID"`
	IntersectionID             string             `json:"intersectionID"`
	FullSiteDescriptor         string             `json:"fullSiteDescriptor"`
	AccessNotes                string             `json:"accessNotes"`
	SiteStatus                 PhysicalStatus     `json:"siteStatus"`
	SiteRetireDate             *Date              `json:"siteRetireDate"`
	ChangeDate                 *Date              `json:"changeDate"`
	IsOfficial                 bool               `json:"isOfficial"`
	Degree                     *int               `json:"degree"`
	ExecutionTime              float64            `json:"executionTime"`
	InternalSequenceID         *int               `json:"internalSequenceId"`
}

// AttributeType is the serializer-facing type of a record attribute.
type AttributeType string

const (
	TypeString  AttributeType = "string"
	TypeInt     AttributeType = "int"
	TypeBool    AttributeType = "bool"
	TypeEnum    AttributeType = "enum"
	TypePoint   AttributeType = "point"
	TypeDate    AttributeType = "date"
	TypeDecimal AttributeType = "decimal"
)

// Attribute describes one record field.
type Attribute struct {
	Name string
	Type AttributeType
	// Nullable attributes may be emitted as null; the rest never are.
	Nullable bool
}

var attributes = []Attribute{
	{"yourId", TypeString, false},
	{"fullAddress", TypeString, false},
	{"intersectionName", TypeString, false},
	{"score", TypeInt, false},
	{"matchPrecision", TypeEnum, true},
	{"precisionPoints", TypeInt, false},
	{"faults", TypeString, false},
	{"siteName", TypeString, false},
	{"unitDesignator", TypeString, false},
	{"unitNumber", TypeString, false},
	{"unitNumberSuffix", TypeString, false},
	{"civicNumber", TypeString, false},
	{"civicNumberSuffix", TypeString, false},
	{"streetName", TypeString, false},
	{"streetType", TypeString, false},
	{"isStreetTypePrefix", TypeBool, false},
	{"streetDirection", TypeString, false},
	{"isStreetDirectionPrefix", TypeBool, false},
	{"streetQualifier", TypeString, false},
	{"localityName", TypeString, false},
	{"localityType", TypeEnum, true},
	{"electoralArea", TypeString, false},
	{"provinceCode", TypeString, false},
	{"location", TypePoint, true},
	{"locationPositionalAccuracy", TypeEnum, true},
	{"locationDescriptor", TypeEnum, true},
	{"siteID", TypeString, false},
	{"blockID", TypeInt, true},
	{"intersectionID", TypeString, false},
	{"fullSiteDescriptor", TypeString, false},
	{"accessNotes", TypeString, false},
	{"siteStatus", TypeEnum, false},
	{"siteRetireDate", TypeDate, true},
	{"changeDate", TypeDate, true},
	{"isOfficial", TypeBool, false},
	{"degree", TypeInt, true},
	{"executionTime", TypeDecimal, false},
	{"internalSequenceId", TypeInt, true},
}

// Attributes returns the ordered output schema.
func Attributes() []Attribute {
	out := make([]Attribute, len(attributes))
	copy(out, attributes)
	return out
}

// AttributeNames returns the attribute names in output order.
func AttributeNames() []string {
	names := make([]string, len(attributes))
	for i, a := range attributes {
		names[i] = a.Name
	}
	return names
}

// Values returns the record's values in attribute order. Absent values are nil.
func (r Record) Values() []any {
	return []any{
		r.YourID,
		r.FullAddress,
		r.IntersectionName,
		r.Score,
		enumValue(string(r.MatchPrecision)),
		r.PrecisionPoints,
		r.Faults,
		r.SiteName,
		r.UnitDesignator,
		r.UnitNumber,
		r.UnitNumberSuffix,
		r.CivicNumber,
		r.CivicNumberSuffix,
		r.StreetName,
		r.StreetType,
		r.IsStreetTypePrefix,
		r.StreetDirection,
		r.IsStreetDirectionPrefix,
		r.StreetQualifier,
		r.LocalityName,
		enumValue(string(r.LocalityType)),
		r.ElectoralArea,
		r.ProvinceCode,
		pointValue(r.Location),
		enumValue(string(r.LocationPositionalAccuracy)),
		enumValue(string(r.LocationDescriptor)),
		r.SiteID,
		intValue(r.BlockID),
		r.IntersectionID,
		r.FullSiteDescriptor,
		r.AccessNotes,
		enumValue(string(r.SiteStatus)),
		dateValue(r.SiteRetireDate),
		dateValue(r.ChangeDate),
		r.IsOfficial,
		intValue(r.Degree),
		r.ExecutionTime,
		intValue(r.InternalSequenceID),
	}
}

// Strings renders the record for delimited text output. Absent values become
// empty strings; executionTime keeps three decimals.
func (r Record) Strings() []string {
	values := r.Values()
	out := make([]string, len(values))
	for i, v := range values {
		switch tv := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = tv
		case int:
			out[i] = strconv.Itoa(tv)
		case bool:
			out[i] = strconv.FormatBool(tv)
		case float64:
			out[i] = strconv.FormatFloat(tv, 'f', 3, 64)
		case Point:
			out[i] = tv.String()
		case Date:
			out[i] = tv.String()
		}
	}
	return out
}

func enumValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func intValue(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func pointValue(p *Point) any {
	if p == nil {
		return nil
	}
	return *p
}

func dateValue(d *Date) any {
	if d == nil {
		return nil
	}
	return *d
}
