package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchPrecision is the level at which the engine matched an address.
type MatchPrecision string

const (
	PrecisionOccupant     MatchPrecision = "OCCUPANT"
	PrecisionUnit         MatchPrecision = "UNIT"
	PrecisionSite         MatchPrecision = "SITE"
	PrecisionCivicNumber  MatchPrecision = "CIVIC_NUMBER"
	PrecisionIntersection MatchPrecision = "INTERSECTION"
	PrecisionBlock        MatchPrecision = "BLOCK"
	PrecisionStreet       MatchPrecision = "STREET"
	PrecisionLocality     MatchPrecision = "LOCALITY"
	PrecisionProvince     MatchPrecision = "PROVINCE"
	PrecisionNone         MatchPrecision = "NONE"
)

var matchPrecisions = []MatchPrecision{
	PrecisionOccupant, PrecisionUnit, PrecisionSite, PrecisionCivicNumber,
	PrecisionIntersection, PrecisionBlock, PrecisionStreet, PrecisionLocality,
	PrecisionProvince, PrecisionNone,
}

// ParseMatchPrecision converts a precision name, ignoring case and surrounding space.
func ParseMatchPrecision(s string) (MatchPrecision, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, p := range matchPrecisions {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown match precision %q", s)
}

func (p MatchPrecision) MarshalJSON() ([]byte, error) { return marshalEnum(string(p)) }

// Interpolation selects how the engine places addresses between known sites.
type Interpolation string

const (
	InterpolationAdaptive Interpolation = "adaptive"
	InterpolationLinear   Interpolation = "linear"
	InterpolationNone     Interpolation = "none"
)

// ParseInterpolation accepts adaptive, linear or none in any case.
func ParseInterpolation(s string) (Interpolation, error) {
	for _, v := range []Interpolation{InterpolationAdaptive, InterpolationLinear, InterpolationNone} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown interpolation %q", s)
}

// LocationDescriptor describes what the returned point represents.
type LocationDescriptor string

const (
	DescriptorAny               LocationDescriptor = "any"
	DescriptorAccessPoint       LocationDescriptor = "accessPoint"
	DescriptorFrontDoorPoint    LocationDescriptor = "frontDoorPoint"
	DescriptorParcelPoint       LocationDescriptor = "parcelPoint"
	DescriptorRooftopPoint      LocationDescriptor = "rooftopPoint"
	DescriptorRoutingPoint      LocationDescriptor = "routingPoint"
	DescriptorLocalityPoint     LocationDescriptor = "localityPoint"
	DescriptorProvincePoint     LocationDescriptor = "provincePoint"
	DescriptorStreetPoint       LocationDescriptor = "streetPoint"
	DescriptorIntersectionPoint LocationDescriptor = "intersectionPoint"
	DescriptorBlockFaceMidpoint LocationDescriptor = "blockFaceMidpoint"
)

// requestDescriptors are the values a caller may ask for; the rest only
// appear on results.
var requestDescriptors = []LocationDescriptor{
	DescriptorAny, DescriptorAccessPoint, DescriptorFrontDoorPoint,
	DescriptorParcelPoint, DescriptorRooftopPoint, DescriptorRoutingPoint,
}

var resultDescriptors = append(append([]LocationDescriptor{}, requestDescriptors...),
	DescriptorLocalityPoint, DescriptorProvincePoint, DescriptorStreetPoint,
	DescriptorIntersectionPoint, DescriptorBlockFaceMidpoint,
)

// ParseLocationDescriptor accepts the request-side descriptor names in any case.
func ParseLocationDescriptor(s string) (LocationDescriptor, error) {
	if d, ok := lookupDescriptor(requestDescriptors, s); ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown location descriptor %q", s)
}

// LocationDescriptorOf maps an engine-supplied name to a descriptor, or ""
// when the name is not recognised.
func LocationDescriptorOf(s string) LocationDescriptor {
	d, _ := lookupDescriptor(resultDescriptors, s)
	return d
}

func lookupDescriptor(set []LocationDescriptor, s string) (LocationDescriptor, bool) {
	s = strings.TrimSpace(s)
	for _, d := range set {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

func (d LocationDescriptor) MarshalJSON() ([]byte, error) { return marshalEnum(string(d)) }

// PositionalAccuracy is the accuracy tier of a returned location.
type PositionalAccuracy string

const (
	AccuracyCoarse PositionalAccuracy = "coarse"
	AccuracyLow    PositionalAccuracy = "low"
	AccuracyMedium PositionalAccuracy = "medium"
	AccuracyHigh   PositionalAccuracy = "high"
)

// PositionalAccuracyOf maps an engine-supplied name to a tier, or "" when unknown.
func PositionalAccuracyOf(s string) PositionalAccuracy {
	for _, a := range []PositionalAccuracy{AccuracyCoarse, AccuracyLow, AccuracyMedium, AccuracyHigh} {
		if strings.EqualFold(strings.TrimSpace(s), string(a)) {
			return a
		}
	}
	return ""
}

func (a PositionalAccuracy) MarshalJSON() ([]byte, error) { return marshalEnum(string(a)) }

// PhysicalStatus is the lifecycle state of a site.
type PhysicalStatus string

const (
	StatusProposed PhysicalStatus = "PROPOSED"
	StatusActive   PhysicalStatus = "ACTIVE"
	StatusRetired  PhysicalStatus = "RETIRED"
)

// PhysicalStatusOf maps an engine-supplied name to a status, or "" when unknown.
func PhysicalStatusOf(s string) PhysicalStatus {
	for _, st := range []PhysicalStatus{StatusProposed, StatusActive, StatusRetired} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st
		}
	}
	return ""
}

func (s PhysicalStatus) MarshalJSON() ([]byte, error) { return marshalEnum(string(s)) }

// LocalityType is the engine's classification of a locality (municipality,
// community, Indian reserve, ...). The set is owned by the engine.
type LocalityType string

func (t LocalityType) MarshalJSON() ([]byte, error) { return marshalEnum(string(t)) }

// marshalEnum writes unknown (empty) enum values as null.
func marshalEnum(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}
