// Package reader decodes heterogeneous input containers into a lazy
// sequence of raw records. The container kind is determined once from a
// single peek at the first non-whitespace byte and dispatches to one of
// three production strategies behind the same interface.
package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/orgmesh-labs/orgmesh/internal/metrics"
	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// Kind is the top-level shape of the ingestion input.
type Kind int

const (
	KindUnknown Kind = iota
	KindArray        // JSON array, decoded one element at a time
	KindObject       // single object whose values are flattened
	KindLines        // newline-delimited JSON values
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindLines:
		return "lines"
	default:
		return "unknown"
	}
}

// Policy controls how the array decoder treats a malformed chunk boundary.
type Policy int

const (
	// PolicyStrict surfaces a malformed element as a hard parse failure.
	PolicyStrict Policy = iota
	// PolicyLenient stops decoding at the first malformed element without
	// error, tolerating truncated downloads.
	PolicyLenient
)

// ErrStop may be returned from a record callback to end iteration early
// without surfacing an error.
var ErrStop = fmt.Errorf("reader: stop iteration")

// Source produces raw records from a file. It is restartable: every call
// to Each re-opens the file and replays the sequence from the start.
type Source struct {
	path   string
	policy Policy
}

// NewSource creates a source for the given input path.
func NewSource(path string, policy Policy) *Source {
	return &Source{path: path, policy: policy}
}

// Kind peeks the first non-whitespace byte and classifies the container.
func (s *Source) Kind() (Kind, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return KindUnknown, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return detectKind(bufio.NewReader(f))
}

func detectKind(r *bufio.Reader) (Kind, error) {
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return KindLines, nil // empty input behaves as an empty line stream
		}
		if err != nil {
			return KindUnknown, fmt.Errorf("peek input: %w", err)
		}
		if unicode.IsSpace(rune(b)) {
			continue
		}
		switch b {
		case '[':
			return KindArray, nil
		case '{':
			return KindObject, nil
		default:
			return KindLines, nil
		}
	}
}

// Each streams every record to fn without buffering the full input.
// A truncated or malformed stream surfaces as a hard parse failure for
// the run, except where the lenient array policy applies.
func (s *Source) Each(ctx context.Context, fn func(models.RawRecord) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	kind, err := detectKind(br)
	if err != nil {
		return err
	}

	// detectKind consumed up to and including the first significant byte;
	// rewind so each strategy sees the stream from the beginning.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind input: %w", err)
	}
	br.Reset(f)

	emit := func(rec models.RawRecord) error {
		metrics.RecordsReadTotal.Inc()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(rec)
	}

	var iterErr error
	switch kind {
	case KindArray:
		iterErr = s.eachArray(br, emit)
	case KindObject:
		iterErr = s.eachObject(br, emit)
	default:
		iterErr = s.eachLines(br, emit)
	}
	if iterErr == ErrStop {
		return nil
	}
	return iterErr
}

// Peek returns the first record of the stream, or nil if the stream is
// empty. Callers inspect it before committing to a full run, then restart
// with Each.
func (s *Source) Peek(ctx context.Context) (models.RawRecord, error) {
	var first models.RawRecord
	err := s.Each(ctx, func(rec models.RawRecord) error {
		first = rec
		return ErrStop
	})
	if err != nil {
		return nil, err
	}
	return first, nil
}

// eachArray decodes one element at a time; the whole array is never held
// in memory.
func (s *Source) eachArray(r io.Reader, fn func(models.RawRecord) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode array open: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("decode array open: unexpected token %v", tok)
	}

	for dec.More() {
		var rec models.RawRecord
		if err := dec.Decode(&rec); err != nil {
			if s.policy == PolicyLenient {
				// Truncated download tolerance: stop at the malformed
				// chunk boundary instead of failing the run.
				return nil
			}
			return fmt.Errorf("decode array element: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		if s.policy == PolicyLenient {
			return nil
		}
		return fmt.Errorf("decode array close: %w", err)
	}
	return nil
}

// eachObject walks a single top-level object value by value; list values
// are flattened into individual records, nested objects are collected as
// records, and scalar values are ignored. Values are decoded in document
// order without holding the whole object in memory.
func (s *Source) eachObject(r io.Reader, fn func(models.RawRecord) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode object open: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode object open: unexpected token %v", tok)
	}

	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("decode object key: %w", err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode object value: %w", err)
		}
		switch firstByte(raw) {
		case '[':
			var elems []models.RawRecord
			if err := json.Unmarshal(raw, &elems); err != nil {
				return fmt.Errorf("decode object list value: %w", err)
			}
			for _, rec := range elems {
				if err := fn(rec); err != nil {
					return err
				}
			}
		case '{':
			var rec models.RawRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode object value: %w", err)
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode object close: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after top-level object")
	}
	return nil
}

// eachLines yields one record per non-blank line.
func (s *Source) eachLines(r io.Reader, fn func(models.RawRecord) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if len(trimSpace(text)) == 0 {
			continue
		}
		var rec models.RawRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return fmt.Errorf("decode line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read lines: %w", err)
	}
	return nil
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		if !unicode.IsSpace(rune(b)) {
			return b
		}
	}
	return 0
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && unicode.IsSpace(rune(b[start])) {
		start++
	}
	end := len(b)
	for end > start && unicode.IsSpace(rune(b[end-1])) {
		end--
	}
	return b[start:end]
}
