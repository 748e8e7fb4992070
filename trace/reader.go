package trace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxSampledSize bounds the entries of a size distribution file.
const maxSampledSize = 4096

// LoadSizes reads whitespace separated integers,
// keeping those in (0, 4096).
func LoadSizes(r io.Reader) ([]int64, error) {
	var (
		scanner = bufio.NewScanner(r)
		sizes   []int64
	)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		size, err := strconv.ParseInt(scanner.Text(), 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parsing size distribution")
		}
		if size > 0 && size < maxSampledSize {
			sizes = append(sizes, size)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading size distribution")
	}
	return sizes, nil
}

// Reader parses a trace of `id size` or `time id size` lines.
// Blank lines and lines starting with '#' are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns io.EOF once the input is exhausted.
func (r *Reader) Next() (Request, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return r.parse(strings.Fields(line))
	}
	if err := r.scanner.Err(); err != nil {
		return Request{}, errors.Wrapf(err, "reading line %d", r.line+1)
	}
	return Request{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int { return r.line }

func (r *Reader) parse(fields []string) (Request, error) {
	switch len(fields) {
	case 2:
	case 3:
		fields = fields[1:] // Timestamp.
	default:
		return Request{}, errors.Wrapf(ErrMalformedRecord,
			"line %d: expected 2 or 3 fields, got %d", r.line, len(fields))
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Request{}, errors.Wrapf(ErrMalformedRecord,
			"line %d: id %q", r.line, fields[0])
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || size < 1 {
		return Request{}, errors.Wrapf(ErrMalformedRecord,
			"line %d: size %q", r.line, fields[1])
	}
	return Request{ID: id, Size: size}, nil
}
