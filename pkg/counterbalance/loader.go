package counterbalance

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// byteOrderMark is U+FEFF as it may survive on the first header cell.
const byteOrderMark = "\ufeff"

var (
	idAliases    = []string{"id", "subject_id", "participant", "participant_id"}
	trialAliases = [3][]string{
		{"trial1", "t1"},
		{"trial2", "t2"},
		{"trial3", "t3"},
	}
	sniffDelimiters = []rune{',', ';', '\t'}
)

type loadOptions struct {
	delimiter rune
	policy    DuplicatePolicy
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithDelimiter fixes the field delimiter. Zero sniffs ',', ';' or tab from the header line.
func WithDelimiter(d rune) LoadOption {
	return func(o *loadOptions) { o.delimiter = d }
}

// WithDuplicatePolicy selects how repeated participant IDs are handled.
func WithDuplicatePolicy(p DuplicatePolicy) LoadOption {
	return func(o *loadOptions) { o.policy = p }
}

// LoadBytes is Load over an in-memory source.
func LoadBytes(data []byte, opts ...LoadOption) (*Table, error) {
	return Load(bytes.NewReader(data), opts...)
}

// Load parses a delimited counterbalancing table.
//
// The source may be UTF-8 with or without a byte-order mark, or UTF-16 with a
// byte-order mark. Every row's ID is canonicalized; any row that fails (bad ID,
// non-integer trial, missing cells, rejected duplicate) fails the whole load
// with a *TableError naming the row. Rows whose cells are all blank are skipped.
func Load(r io.Reader, opts ...LoadOption) (*Table, error) {
	if r == nil {
		return nil, &TableError{Err: ErrNoSource}
	}
	o := loadOptions{policy: DuplicateReject}
	for _, opt := range opts {
		opt(&o)
	}

	decoded, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, &TableError{Err: fmt.Errorf("decode source: %w", err)}
	}

	delimiter := o.delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(decoded)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &TableError{Err: ErrEmptyTable}
	}
	if err != nil {
		return nil, &TableError{Row: 1, Err: fmt.Errorf("read header: %w", err)}
	}

	layout, err := matchColumns(header)
	if err != nil {
		return nil, err
	}

	b := newTableBuilder(o.policy)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			row := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				row = parseErr.Line
			}
			return nil, &TableError{Row: row, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		entry, err := layout.entry(record, line)
		if err != nil {
			return nil, err
		}
		if err := b.add(entry, line); err != nil {
			return nil, err
		}
	}

	return b.build(layout.names), nil
}

// NormalizeHeader returns the matching key for a header cell: byte-order mark
// removed, surrounding whitespace trimmed, case folded.
func NormalizeHeader(h string) string {
	return normalizeHeader(cases.Fold(), h)
}

func normalizeHeader(folder cases.Caser, h string) string {
	h = strings.TrimPrefix(h, byteOrderMark)
	h = strings.TrimSpace(h)
	return folder.String(h)
}

// columnLayout holds header positions of the four required columns.
type columnLayout struct {
	id     int
	trials [3]int
	names  Columns
}

func matchColumns(header []string) (columnLayout, error) {
	folder := cases.Fold()
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(folder, h)
	}

	layout := columnLayout{id: indexOfAny(normalized, idAliases)}
	if layout.id < 0 {
		return columnLayout{}, &TableError{Row: 1, Err: ErrMissingIDColumn}
	}

	var missing []string
	for i, aliases := range trialAliases {
		layout.trials[i] = indexOfAny(normalized, aliases)
		if layout.trials[i] < 0 {
			missing = append(missing, fmt.Sprintf("Trial%d", i+1))
		}
	}
	if len(missing) > 0 {
		return columnLayout{}, &TableError{Row: 1, Err: fmt.Errorf("%w: %s", ErrMissingTrialColumns, strings.Join(missing, ", "))}
	}

	source := func(i int) string {
		return strings.TrimSpace(strings.TrimPrefix(header[i], byteOrderMark))
	}
	layout.names = Columns{
		ID:     source(layout.id),
		Trial1: source(layout.trials[0]),
		Trial2: source(layout.trials[1]),
		Trial3: source(layout.trials[2]),
	}
	return layout, nil
}

func (l columnLayout) entry(record []string, row int) (Entry, error) {
	if l.id >= len(record) {
		return Entry{}, &TableError{Row: row, Column: "ID", Err: ErrShortRow}
	}
	id, err := Canonicalize(record[l.id])
	if err != nil {
		return Entry{}, &TableError{Row: row, Column: "ID", Err: err}
	}

	var trials [3]int
	for i, col := range l.trials {
		column := fmt.Sprintf("Trial%d", i+1)
		if col >= len(record) {
			return Entry{}, &TableError{Row: row, Column: column, Err: ErrShortRow}
		}
		cell := strings.TrimSpace(record[col])
		value, err := strconv.Atoi(cell)
		if err != nil {
			return Entry{}, &TableError{Row: row, Column: column, Err: fmt.Errorf("%w: %q", ErrInvalidTrial, cell)}
		}
		trials[i] = value
	}

	return Entry{ID: id, Trial1: trials[0], Trial2: trials[1], Trial3: trials[2]}, nil
}

// indexOfAny returns the first header position whose normalized name is in aliases.
func indexOfAny(normalized []string, aliases []string) int {
	for i, name := range normalized {
		for _, alias := range aliases {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the candidate that occurs most often on the first line.
// Ties and a line with none of the candidates fall back to ','.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', 0
	for _, d := range sniffDelimiters {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
