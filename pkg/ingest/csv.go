// Package ingest turns uploaded files into chunks ready for the index
// writer. CSV imports follow a fixed facility-listing layout; plain text
// goes through the separator segmenter in pkg/chunk.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/sumika-ai/sumika/pkg/chunk"
)

// csvColumns is the fixed column count of a facility CSV: main category,
// sub category, facility name, latitude, longitude, walking distance,
// walking minutes, straight-line distance. No header row.
const csvColumns = 8

var (
	// ErrUndecodable means none of the candidate encodings produced
	// valid text for the file.
	ErrUndecodable = errors.New("could not determine file encoding")

	// ErrNoValidRows means every row of the CSV failed to parse.
	ErrNoValidRows = errors.New("no valid rows in csv file")
)

// RowError records a single row that could not be imported. Row numbers
// are 1-based to match how spreadsheets display them.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// CSVReport summarizes a CSV import. Failed rows do not abort the import;
// they are collected here so the caller can surface them.
type CSVReport struct {
	Chunks []chunk.Chunk
	Errors []RowError
}

// ImportCSV parses a facility CSV into chunks, one per data row. The file
// is decoded as UTF-8 first, then Shift-JIS and EUC-JP, since listing
// exports from Japanese tooling commonly arrive in legacy encodings.
// Malformed rows are reported in the returned CSVReport and skipped.
func ImportCSV(data []byte, session string, logger *zap.Logger) (*CSVReport, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	report := &CSVReport{}
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			report.Errors = append(report.Errors, RowError{Row: row, Err: err})
			continue
		}
		c, err := rowChunk(record, row-1, session)
		if err != nil {
			logger.Warn("skipping csv row",
				zap.Int("row", row),
				zap.Error(err),
			)
			report.Errors = append(report.Errors, RowError{Row: row, Err: err})
			continue
		}
		report.Chunks = append(report.Chunks, c)
	}

	if len(report.Chunks) == 0 {
		return nil, fmt.Errorf("%w: %d rows rejected", ErrNoValidRows, len(report.Errors))
	}

	logger.Info("imported csv",
		zap.Int("chunks", len(report.Chunks)),
		zap.Int("rejected", len(report.Errors)),
	)
	return report, nil
}

// rowChunk maps one CSV record onto a facility chunk. index is the
// 0-based row index used for the chunk id.
func rowChunk(record []string, index int, session string) (chunk.Chunk, error) {
	if len(record) < csvColumns {
		return chunk.Chunk{}, fmt.Errorf("expected %d columns, got %d", csvColumns, len(record))
	}

	main := strings.TrimSpace(record[0])
	sub := strings.TrimSpace(record[1])
	facility := strings.TrimSpace(record[2])
	if facility == "" {
		return chunk.Chunk{}, errors.New("empty facility name")
	}

	lat, err := parseFloatField(record[3], "latitude")
	if err != nil {
		return chunk.Chunk{}, err
	}
	lon, err := parseFloatField(record[4], "longitude")
	if err != nil {
		return chunk.Chunk{}, err
	}
	walkDist, err := parseIntField(record[5], "walking distance")
	if err != nil {
		return chunk.Chunk{}, err
	}
	walkMin, err := parseIntField(record[6], "walking minutes")
	if err != nil {
		return chunk.Chunk{}, err
	}
	straight, err := parseIntField(record[7], "straight distance")
	if err != nil {
		return chunk.Chunk{}, err
	}

	return chunk.Chunk{
		ID:   chunk.CSVChunkID(index, session),
		Text: fmt.Sprintf("%sは%sの%sです。", facility, main, sub),
		Metadata: chunk.Metadata{
			MainCategory:     main,
			SubCategory:      sub,
			FacilityName:     facility,
			Latitude:         lat,
			Longitude:        lon,
			WalkingDistance:  walkDist,
			WalkingMinutes:   walkMin,
			StraightDistance: straight,
			Source:           "csv",
		},
	}, nil
}

func parseFloatField(s, name string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

// parseIntField accepts decimal fractions and truncates them, matching
// how distance columns are exported ("480.0").
func parseIntField(s, name string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return int(v), nil
}

// decodeText returns data as UTF-8, trying UTF-8 itself, then Shift-JIS,
// then EUC-JP.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	}
	for _, enc := range []encoding.Encoding{japanese.ShiftJIS, japanese.EUCJP} {
		out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
		if err == nil && utf8.Valid(out) {
			return string(out), nil
		}
	}
	return "", ErrUndecodable
}
