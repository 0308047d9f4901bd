package domain

// DefaultProvinceCode applies when a request names no province.
const DefaultProvinceCode = "BC"

// Query is a fully resolved geocoding request. It is produced once per
// request by the query builder and is not modified afterwards.
type Query struct {
	AddressString string
	MaxResults    int
	MinScore      int
	SetBack       int

	MatchPrecision    []MatchPrecision
	MatchPrecisionNot []MatchPrecision
	Localities        []string
	NotLocalities     []string

	Centre      *Point
	MaxDistance *int
	BBox        *BBox

	Echo               bool
	Interpolation      Interpolation
	LocationDescriptor LocationDescriptor

	SiteName          string
	UnitDesignator    string
	UnitNumber        string
	UnitNumberSuffix  string
	CivicNumber       string
	CivicNumberSuffix string
	StreetName        string
	StreetType        string
	StreetDirection   string
	StreetQualifier   string
	LocalityName      string
	ProvinceCode      string
	YourID            string

	Extrapolate bool
	ParcelPoint *Point
}
