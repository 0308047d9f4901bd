package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// ewktPointRe matches "SRID=4326;POINT(-123.37 48.41)"; the SRID prefix is optional.
var ewktPointRe = regexp.MustCompile(`(?i)^\s*(?:SRID\s*=\s*(\d+)\s*;)?\s*POINT\s*\(\s*(\S+)\s+(\S+)\s*\)\s*$`)

// splitList splits a comma-delimited parameter, trimming items and dropping
// empty ones. It returns nil when nothing remains.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseLocalities lower-cases locality names for case-insensitive matching.
func parseLocalities(s string) []string {
	items := splitList(s)
	if items == nil {
		return nil
	}
	// A Caser is stateful, so each call gets its own.
	lower := cases.Lower(language.Und)
	for i, item := range items {
		items[i] = lower.String(item)
	}
	return items
}

func parsePrecisionList(param, s string) ([]domain.MatchPrecision, error) {
	items := splitList(s)
	if items == nil {
		return nil, nil
	}
	out := make([]domain.MatchPrecision, 0, len(items))
	for _, item := range items {
		p, err := domain.ParseMatchPrecision(item)
		if err != nil {
			return nil, domain.ParamError(param, "unknown precision", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// parseFinite reads one coordinate. NaN and infinities are rejected because
// every ordering check against them is false.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// parseDoubles reads exactly n comma-separated numbers.
func parseDoubles(param, s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, domain.ParamError(param, fmt.Sprintf("expected %d comma-separated numbers", n), nil)
	}
	out := make([]float64, n)
	for i, part := range parts {
		v, err := parseFinite(part)
		if err != nil {
			return nil, domain.ParamError(param, "malformed number", err)
		}
		out[i] = v
	}
	return out, nil
}

// parsePoint reads EWKT or "x,y". Input without an SRID is taken to be in defaultSRID.
func parsePoint(param, s string, defaultSRID int) (domain.Point, error) {
	if m := ewktPointRe.FindStringSubmatch(s); m != nil {
		srid := defaultSRID
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return domain.Point{}, domain.ParamError(param, "malformed SRID", err)
			}
			srid = v
		}
		x, errX := parseFinite(m[2])
		y, errY := parseFinite(m[3])
		if errX != nil || errY != nil {
			return domain.Point{}, domain.ParamError(param, "malformed coordinate", nil)
		}
		return domain.Point{X: x, Y: y, SRID: srid}, nil
	}

	xy, err := parseDoubles(param, s, 2)
	if err != nil {
		return domain.Point{}, err
	}
	return domain.Point{X: xy[0], Y: xy[1], SRID: defaultSRID}, nil
}
