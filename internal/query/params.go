package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// Params are the raw request parameters as declared to the batch host. A nil
// field means the caller did not supply the parameter.
type Params struct {
	AddressString      *string `param:"addressString"`
	MaxResults         *int    `param:"maxResults" validate:"omitnil,min=1,max=1000"`
	MinScore           *int    `param:"minScore" validate:"omitnil,min=0,max=100"`
	SetBack            *int    `param:"setBack" validate:"omitnil,min=0,max=1000"`
	MatchPrecision     *string `param:"matchPrecision"`
	MatchPrecisionNot  *string `param:"matchPrecisionNot"`
	Localities         *string `param:"localities"`
	NotLocalities      *string `param:"notLocalities"`
	Centre             *string `param:"centre"`
	MaxDistance        *int    `param:"maxDistance" validate:"omitnil,min=0"`
	BBox               *string `param:"bbox"`
	Echo               *bool   `param:"echo"`
	Interpolation      *string `param:"interpolation"`
	LocationDescriptor *string `param:"locationDescriptor"`
	SiteName           *string `param:"siteName"`
	UnitDesignator     *string `param:"unitDesignator"`
	UnitNumber         *string `param:"unitNumber"`
	UnitNumberSuffix   *string `param:"unitNumberSuffix"`
	CivicNumber        *string `param:"civicNumber"`
	CivicNumberSuffix  *string `param:"civicNumberSuffix"`
	StreetName         *string `param:"streetName"`
	StreetType         *string `param:"streetType"`
	StreetDirection    *string `param:"streetDirection"`
	StreetQualifier    *string `param:"streetQualifier"`
	LocalityName       *string `param:"localityName"`
	ProvinceCode       *string `param:"provinceCode"`
	YourID             *string `param:"yourId"`
	Extrapolate        *bool   `param:"extrapolate"`
	ParcelPoint        *string `param:"parcelPoint"`
}

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("param")
	})
	return v
}

// Validate range-checks the numeric parameters. The first violation is
// returned as a parameter error.
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.ParamError("", "invalid parameters", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "min":
		return domain.ParamError(fe.Field(), "must be at least "+fe.Param(), nil)
	case "max":
		return domain.ParamError(fe.Field(), "must be at most "+fe.Param(), nil)
	default:
		return domain.ParamError(fe.Field(), fmt.Sprintf("failed %s check", fe.Tag()), nil)
	}
}

// paramSetters maps each parameter name to the coercion that stores it.
var paramSetters = map[string]func(p *Params, v any) error{
	"addressString":      func(p *Params, v any) error { return setString(&p.AddressString, v) },
	"maxResults":         func(p *Params, v any) error { return setInt(&p.MaxResults, v) },
	"minScore":           func(p *Params, v any) error { return setInt(&p.MinScore, v) },
	"setBack":            func(p *Params, v any) error { return setInt(&p.SetBack, v) },
	"matchPrecision":     func(p *Params, v any) error { return setString(&p.MatchPrecision, v) },
	"matchPrecisionNot":  func(p *Params, v any) error { return setString(&p.MatchPrecisionNot, v) },
	"localities":         func(p *Params, v any) error { return setString(&p.Localities, v) },
	"notLocalities":      func(p *Params, v any) error { return setString(&p.NotLocalities, v) },
	"centre":             func(p *Params, v any) error { return setString(&p.Centre, v) },
	"maxDistance":        func(p *Params, v any) error { return setInt(&p.MaxDistance, v) },
	"bbox":               func(p *Params, v any) error { return setString(&p.BBox, v) },
	"echo":               func(p *Params, v any) error { return setBool(&p.Echo, v) },
	"interpolation":      func(p *Params, v any) error { return setString(&p.Interpolation, v) },
	"locationDescriptor": func(p *Params, v any) error { return setString(&p.LocationDescriptor, v) },
	"siteName":           func(p *Params, v any) error { return setString(&p.SiteName, v) },
	"unitDesignator":     func(p *Params, v any) error { return setString(&p.UnitDesignator, v) },
	"unitNumber":         func(p *Params, v any) error { return setString(&p.UnitNumber, v) },
	"unitNumberSuffix":   func(p *Params, v any) error { return setString(&p.UnitNumberSuffix, v) },
	"civicNumber":        func(p *Params, v any) error { return setString(&p.CivicNumber, v) },
	"civicNumberSuffix":  func(p *Params, v any) error { return setString(&p.CivicNumberSuffix, v) },
	"streetName":         func(p *Params, v any) error { return setString(&p.StreetName, v) },
	"streetType":         func(p *Params, v any) error { return setString(&p.StreetType, v) },
	"streetDirection":    func(p *Params, v any) error { return setString(&p.StreetDirection, v) },
	"streetQualifier":    func(p *Params, v any) error { return setString(&p.StreetQualifier, v) },
	"localityName":       func(p *Params, v any) error { return setString(&p.LocalityName, v) },
	"provinceCode":       func(p *Params, v any) error { return setString(&p.ProvinceCode, v) },
	"yourId":             func(p *Params, v any) error { return setString(&p.YourID, v) },
	"extrapolate":        func(p *Params, v any) error { return setBool(&p.Extrapolate, v) },
	"parcelPoint":        func(p *Params, v any) error { return setString(&p.ParcelPoint, v) },
}

// ParamNames lists every recognised request parameter.
func ParamNames() []string {
	names := make([]string, 0, len(paramSetters))
	for name := range paramSetters {
		names = append(names, name)
	}
	return names
}

// ParamsFromMap coerces loosely typed values (decoded JSON, CSV cells) into
// Params. Unknown keys are ignored; nil values leave the parameter unset.
func ParamsFromMap(m map[string]any) (Params, error) {
	var p Params
	for name, v := range m {
		set, ok := paramSetters[name]
		if !ok || v == nil {
			continue
		}
		if err := set(&p, v); err != nil {
			return Params{}, domain.ParamError(name, "malformed value", err)
		}
	}
	return p, nil
}

func setString(dst **string, v any) error {
	var s string
	switch tv := v.(type) {
	case string:
		s = tv
	case json.Number:
		s = tv.String()
	case float64:
		s = strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		s = strconv.Itoa(tv)
	case bool:
		s = strconv.FormatBool(tv)
	default:
		return fmt.Errorf("expected text, got %T", v)
	}
	*dst = &s
	return nil
}

func setInt(dst **int, v any) error {
	var n int
	switch tv := v.(type) {
	case int:
		n = tv
	case int64:
		n = int(tv)
	case float64:
		i, err := integral(tv)
		if err != nil {
			return err
		}
		n = i
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return err
		}
		i, err := integral(f)
		if err != nil {
			return err
		}
		n = i
	case string:
		s := strings.TrimSpace(tv)
		if s == "" {
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		n = i
	default:
		return fmt.Errorf("expected integer, got %T", v)
	}
	*dst = &n
	return nil
}

// integral accepts whole numbers written as floats, such as 5.0.
func integral(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

func setBool(dst **bool, v any) error {
	var b bool
	switch tv := v.(type) {
	case bool:
		b = tv
	case string:
		s := strings.TrimSpace(tv)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		b = parsed
	default:
		return fmt.Errorf("expected boolean, got %T", v)
	}
	*dst = &b
	return nil
}
