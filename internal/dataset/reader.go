package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRowLimit bounds the sample loaded when no limit is given.
const DefaultRowLimit = 500

// ErrUnsupportedFormat indicates no reader accepts the file extension.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// LoadOptions tunes ingest.
type LoadOptions struct {
	// Limit caps the number of data records read. Zero means DefaultRowLimit,
	// a negative value reads everything.
	Limit int
	// Delimiter overrides the sniffed field separator for delimited text.
	Delimiter rune
	// Sheet selects an XLSX sheet by name. Empty picks the first sheet.
	Sheet  string
	Format NumberFormat
}

func (o LoadOptions) limit() int {
	switch {
	case o.Limit == 0:
		return DefaultRowLimit
	case o.Limit < 0:
		return int(^uint(0) >> 1)
	default:
		return o.Limit
	}
}

// Reader loads a dataset from a file of a given format.
type Reader interface {
	CanRead(filename string) bool
	Read(path string, opt LoadOptions) (*Dataset, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// Load selects a reader based on filename and returns the first records of
// the file. Column order and cell text are preserved as read.
func Load(path string, opt LoadOptions) (*Dataset, error) {
	for _, r := range registry {
		if r.CanRead(path) {
			return r.Read(path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvReader) Read(path string, opt LoadOptions) (*Dataset, error) {
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited text file.
func LoadCSV(path string, opt LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	ds, err := ReadCSV(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	ds.Name = filepath.Base(path)
	return ds, nil
}

// ReadCSV reads delimited records from r. The first record is the header.
func ReadCSV(r io.Reader, opt LoadOptions) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = trimHeader(header)
	if len(header) == 0 {
		return nil, ErrNoHeader
	}
	ds := &Dataset{Columns: header, Format: opt.Format}
	limit := opt.limit()
	line := 1
	for ds.NumRows() < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", line, err)
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", line, len(rec), len(header))
		}
		ds.appendRow(rec)
	}
	return ds, nil
}

func trimHeader(h []string) []string {
	out := make([]string, len(h))
	for i, v := range h {
		v = strings.TrimSpace(v)
		if i == 0 {
			v = strings.TrimPrefix(v, "\ufeff")
		}
		out[i] = v
	}
	return out
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
