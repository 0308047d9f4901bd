package batchfile

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// ResultWriter writes the records of successful requests. Failed requests
// produce no rows.
type ResultWriter struct {
	format string
	csv    *csv.Writer
	json   *json.Encoder
	header bool
}

// NewResultWriter creates a writer for format on w.
func NewResultWriter(w io.Writer, format string) (*ResultWriter, error) {
	rw := &ResultWriter{format: strings.ToLower(format)}
	switch rw.format {
	case FormatCSV:
		rw.csv = csv.NewWriter(w)
	case FormatJSONL:
		rw.json = json.NewEncoder(w)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return rw, nil
}

type recordLine struct {
	RequestID     string         `json:"requestId"`
	Sequence      int            `json:"sequence"`
	Record        domain.Record  `json:"record"`
	Customization map[string]any `json:"customization,omitempty"`
}

// Write appends every record of res and returns how many were written.
func (rw *ResultWriter) Write(res domain.JobResult) (int, error) {
	if res.Failed() {
		return 0, nil
	}
	if rw.csv != nil {
		return rw.writeCSV(res)
	}
	for i := range res.Records {
		line := recordLine{RequestID: res.RequestID, Sequence: i, Record: res.Records[i]}
		if i < len(res.Customizations) {
			line.Customization = res.Customizations[i]
		}
		if err := rw.json.Encode(line); err != nil {
			return i, fmt.Errorf("write record %d of %s: %w", i, res.RequestID, err)
		}
	}
	return len(res.Records), nil
}

func (rw *ResultWriter) writeCSV(res domain.JobResult) (int, error) {
	if err := rw.writeHeader(); err != nil {
		return 0, err
	}
	for i := range res.Records {
		row := append(res.Records[i].Strings(), res.RequestID)
		if err := rw.csv.Write(row); err != nil {
			return i, fmt.Errorf("write record %d of %s: %w", i, res.RequestID, err)
		}
	}
	return len(res.Records), nil
}

func (rw *ResultWriter) writeHeader() error {
	if rw.header {
		return nil
	}
	rw.header = true
	return rw.csv.Write(append(domain.AttributeNames(), RequestIDColumn))
}

// Flush writes any buffered output. A CSV file with no records still gets
// its header.
func (rw *ResultWriter) Flush() error {
	if rw.csv == nil {
		return nil
	}
	if err := rw.writeHeader(); err != nil {
		return err
	}
	rw.csv.Flush()
	return rw.csv.Error()
}
