package svmlight

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

const defaultMaxLineBytes = 16 << 20

// Reader streams Documents from line-oriented SVMLight input.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps r. maxLineBytes bounds a single line; 0 selects 16 MiB.
func NewReader(r io.Reader, maxLineBytes int) *Reader {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, maxLineBytes)), maxLineBytes)
	return &Reader{scanner: sc}
}

// Next returns the next Document, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Document, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Document{}, fmt.Errorf("reading line %d: %w", r.line+1, err)
		}
		return Document{}, io.EOF
	}
	r.line++
	doc, err := ParseLine(r.scanner.Text())
	if err != nil {
		return Document{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	return doc, nil
}

// Line reports how many lines have been consumed.
func (r *Reader) Line() int {
	return r.line
}

// Each calls fn with the zero-based ordinal of every document until the input
// ends, fn fails or ctx is cancelled.
func (r *Reader) Each(ctx context.Context, fn func(i int, doc Document) error) error {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(i, doc); err != nil {
			return err
		}
	}
}
