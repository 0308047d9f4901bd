package domain

import (
	"fmt"
	"strings"
	"time"
)

// MatchKind tags the concrete variant carried by a MatchResult.
type MatchKind int

const (
	MatchKindUnknown MatchKind = iota
	MatchKindAddress
	MatchKindIntersection
)

func (k MatchKind) String() string {
	switch k {
	case MatchKindAddress:
		return "address"
	case MatchKindIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// Fault is one query element that did not match, with the score penalty it cost.
type Fault struct {
	Element string `json:"element"`
	Fault   string `json:"fault"`
	Penalty int    `json:"penalty"`
	Value   string `json:"value,omitempty"`
}

func (f Fault) String() string {
	return fmt.Sprintf("%s.%s:%d", f.Element, f.Fault, f.Penalty)
}

// Faults renders as a bracketed list, e.g. "[STREET_TYPE.missing:6, LOCALITY.notMatched:10]".
type Faults []Fault

func (fs Faults) String() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the embedded time.Time encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

// Address is the site-level payload of an address match.
type Address struct {
	SiteName              string
	UnitDesignator        string
	UnitNumber            string
	UnitNumberSuffix      string
	CivicNumber           *int
	CivicNumberSuffix     string
	StreetName            string
	StreetType            string
	StreetTypePrefix      *bool
	StreetDirection       string
	StreetDirectionPrefix *bool
	StreetQualifier       string
	ElectoralArea         string
	SiteID                string
	StreetSegmentID       *int
	FullSiteDescriptor    string
	NarrativeLocation     string
	SiteStatus            PhysicalStatus
	SiteRetireDate        *Date
	ChangeDate            *Date
	Primary               bool
	SID                   *int
}

// Intersection is the payload of an intersection match.
type Intersection struct {
	Name   string
	ID     string
	Degree *int
}

// MatchResult is one candidate returned by the engine. Kind selects which of
// Address or Intersection is populated; the other is nil.
type MatchResult struct {
	Kind               MatchKind
	Score              int
	Precision          MatchPrecision
	PrecisionPoints    int
	Faults             Faults
	LocalityName       string
	LocalityType       LocalityType
	ProvinceCode       string
	Location           *Point
	AddressString      string
	YourID             string
	LocationDescriptor LocationDescriptor
	PositionalAccuracy PositionalAccuracy

	Address      *Address
	Intersection *Intersection
}

// NewAddressMatch tags m as an address match carrying addr.
func NewAddressMatch(m MatchResult, addr Address) MatchResult {
	m.Kind = MatchKindAddress
	m.Address = &addr
	m.Intersection = nil
	return m
}

// NewIntersectionMatch tags m as an intersection match carrying in.
func NewIntersectionMatch(m MatchResult, in Intersection) MatchResult {
	m.Kind = MatchKindIntersection
	m.Intersection = &in
	m.Address = nil
	return m
}

// SearchResults is the engine's answer to one query.
type SearchResults struct {
	Matches []MatchResult
	// ExecutionTime is the engine-side duration in milliseconds.
	ExecutionTime   float64
	SearchTimestamp time.Time
}
