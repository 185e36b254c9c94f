// Package ingest validates incoming tabular uploads and rewrites them into
// their canonical form: the header line followed by the data lines sorted by
// the numeric value of their second column, largest first.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"mime"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
)

// SortColumn is the zero-based index of the numeric column rows are sorted by.
const SortColumn = 1

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decimalNumber is the accepted sort value grammar: an optional sign, decimal
// digits with an optional fraction, and an optional exponent. Go literal
// extras such as digit separators, hex floats, Inf and NaN do not match.
var decimalNumber = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// Normalizer turns raw CSV uploads into canonical bytes.
// The zero value accepts comma-delimited input of any size.
type Normalizer struct {
	Delimiter rune  // field delimiter, ',' when zero
	MaxBytes  int64 // input size limit, unlimited when <= 0
}

// NewNormalizer returns a comma-delimited Normalizer limited to maxBytes.
func NewNormalizer(maxBytes int64) *Normalizer {
	return &Normalizer{Delimiter: ',', MaxBytes: maxBytes}
}

type row struct {
	raw   []byte
	value float64
}

// Normalize checks that contentType declares CSV and that raw is a header line
// followed by at least one data line whose second field is a finite number.
// Any violation rejects the whole input with a *common.FormatError.
//
// Data lines are stable sorted in non-increasing order of that number and
// reassembled with the delimiter and line terminator of the input.
func (n *Normalizer) Normalize(contentType string, raw []byte) ([]byte, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, err
	}
	if n.MaxBytes > 0 && int64(len(raw)) > n.MaxBytes {
		return nil, &common.FormatError{Message: fmt.Sprintf("input exceeds %d bytes", n.MaxBytes)}
	}

	bom := bytes.HasPrefix(raw, utf8BOM)
	body := bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(body) {
		return nil, &common.FormatError{Message: "input is not valid UTF-8"}
	}

	eol := detectLineTerminator(body)
	trailing := bytes.HasSuffix(body, eol)
	for bytes.HasSuffix(body, eol) {
		body = bytes.TrimSuffix(body, eol)
	}

	lines := bytes.Split(body, eol)
	if len(lines) < 2 || len(bytes.TrimSpace(lines[0])) == 0 {
		return nil, &common.FormatError{Message: "expected a header line and at least one data line"}
	}

	header := lines[0]
	rows := make([]row, 0, len(lines)-1)
	for i, line := range lines[1:] {
		v, err := n.sortValue(line)
		if err != nil {
			return nil, &common.FormatError{Line: i + 2, Message: err.Error(), Err: err}
		}
		rows = append(rows, row{raw: line, value: v})
	}

	slices.SortStableFunc(rows, func(a, b row) int {
		switch {
		case a.value > b.value:
			return -1
		case a.value < b.value:
			return 1
		default:
			return 0
		}
	})

	var out bytes.Buffer
	out.Grow(len(raw))
	if bom {
		out.Write(utf8BOM)
	}
	out.Write(header)
	for _, r := range rows {
		out.Write(eol)
		out.Write(r.raw)
	}
	if trailing {
		out.Write(eol)
	}
	return out.Bytes(), nil
}

// sortValue parses one data line as a CSV record and returns its sort column.
func (n *Normalizer) sortValue(line []byte) (float64, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return 0, fmt.Errorf("empty data line")
	}

	r := csv.NewReader(bytes.NewReader(line))
	r.Comma = n.delimiter()
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("unparsable record: %w", err)
	}
	if _, err := r.Read(); err != io.EOF {
		return 0, fmt.Errorf("line holds more than one record")
	}
	if len(fields) <= SortColumn {
		return 0, fmt.Errorf("missing column %d", SortColumn+1)
	}

	field := strings.TrimSpace(fields[SortColumn])
	if !decimalNumber.MatchString(field) {
		return 0, fmt.Errorf("column %d is not a number: %q", SortColumn+1, field)
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("column %d is not a number: %q", SortColumn+1, field)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("column %d is not a finite number: %q", SortColumn+1, field)
	}
	return v, nil
}

func (n *Normalizer) delimiter() rune {
	if n.Delimiter == 0 {
		return ','
	}
	return n.Delimiter
}

func checkContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return &common.FormatError{Message: fmt.Sprintf("invalid content type %q", contentType), Err: err}
	}
	if mediaType != common.CSVContentType {
		return &common.FormatError{Message: fmt.Sprintf("only %s files are allowed, got %q", common.CSVContentType, mediaType)}
	}
	return nil
}

// detectLineTerminator returns the terminator of the first line, "\n" by default.
func detectLineTerminator(b []byte) []byte {
	i := bytes.IndexByte(b, '\n')
	if i > 0 && b[i-1] == '\r' {
		return []byte("\r\n")
	}
	return []byte("\n")
}
