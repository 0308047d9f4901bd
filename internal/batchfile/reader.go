// Package batchfile reads geocoding requests from, and writes results to,
// delimited files for offline batch runs.
package batchfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
)

// Supported file formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// RequestIDColumn names the optional column (or JSON key) that identifies a
// request. Rows without one are named by their position in the file.
const RequestIDColumn = "requestId"

// ErrUnknownFormat is returned for a format other than csv or jsonl.
var ErrUnknownFormat = errors.New("unknown batch file format")

// ReadRequests parses every request in r. CSV headers are parameter names;
// blank cells leave the parameter unset. Each JSONL line is one parameter
// object. A row that cannot be decoded becomes a request carrying the
// decode error.
func ReadRequests(r io.Reader, format string) ([]domain.JobRequest, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return readCSV(r)
	case FormatJSONL:
		return readJSONL(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func readCSV(r io.Reader) ([]domain.JobRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var reqs []domain.JobRequest
	for row := 1; ; row++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return reqs, nil
		}
		req := domain.JobRequest{RequestID: rowID(row), Offset: int64(row)}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return reqs, fmt.Errorf("read csv row %d: %w", row, err)
			}
			req.DecodeErr = domain.ParamError("", "malformed csv row", err)
			reqs = append(reqs, req)
			continue
		}
		if len(cells) > len(header) {
			req.DecodeErr = domain.ParamError("", fmt.Sprintf("row has %d cells, header has %d", len(cells), len(header)), nil)
			reqs = append(reqs, req)
			continue
		}

		params := make(map[string]any, len(cells))
		for i, cell := range cells {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if header[i] == RequestIDColumn {
				req.RequestID = cell
				continue
			}
			params[header[i]] = cell
		}
		req.Parameters = params
		reqs = append(reqs, req)
	}
}

func readJSONL(r io.Reader) ([]domain.JobRequest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var reqs []domain.JobRequest
	row := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		row++
		req := domain.JobRequest{RequestID: rowID(row), Offset: int64(row)}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var params map[string]any
		if err := dec.Decode(&params); err != nil || params == nil {
			if err == nil {
				err = errors.New("expected a JSON object")
			}
			req.DecodeErr = domain.ParamError("", "malformed json line", err)
			reqs = append(reqs, req)
			continue
		}
		if id, ok := params[RequestIDColumn].(string); ok && id != "" {
			req.RequestID = id
		}
		delete(params, RequestIDColumn)
		req.Parameters = params
		reqs = append(reqs, req)
	}
	if err := sc.Err(); err != nil {
		return reqs, fmt.Errorf("read jsonl: %w", err)
	}
	return reqs, nil
}

func rowID(row int) string {
	return "row-" + strconv.Itoa(row)
}
