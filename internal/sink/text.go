package sink

import (
	"bufio"
	"context"
	"io"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
)

// Text writes the four-record report per query:
//
//	SIMILAR <q>,<doc>:<score> ...
//	COUNTS <q>,<doc>:<labels> ...
//	ALL_KLASSES <q>,<label>:<score> ...
//	<q>,<label> <label> ...
//
// Every pair is followed by a single space. Text is not safe for concurrent
// use.
type Text struct {
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
}

// NewText writes to w and leaves it open on Close.
func NewText(w io.Writer) *Text {
	return &Text{w: bufio.NewWriterSize(w, 1<<16)}
}

// NewTextFile writes to wc and closes it on Close.
func NewTextFile(wc io.WriteCloser) *Text {
	t := NewText(wc)
	t.closer = wc
	return t
}

func (t *Text) Emit(_ context.Context, res classifier.Result) error {
	b := t.buf[:0]

	b = t.header(b, "SIMILAR ", res.Query)
	for _, n := range res.Neighbors {
		b = strconv.AppendInt(b, int64(n.Doc), 10)
		b = append(b, ':')
		b = appendScore(b, n.Score)
		b = append(b, ' ')
	}
	b = append(b, '\n')

	b = t.header(b, "COUNTS ", res.Query)
	for _, n := range res.Neighbors {
		b = strconv.AppendInt(b, int64(n.Doc), 10)
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(n.LabelCount), 10)
		b = append(b, ' ')
	}
	b = append(b, '\n')

	b = t.header(b, "ALL_KLASSES ", res.Query)
	for _, l := range res.Labels {
		b = strconv.AppendInt(b, int64(l.Label), 10)
		b = append(b, ':')
		b = appendScore(b, l.Score)
		b = append(b, ' ')
	}
	b = append(b, '\n')

	b = t.header(b, "", res.Query)
	for _, l := range res.Predicted {
		b = strconv.AppendInt(b, int64(l), 10)
		b = append(b, ' ')
	}
	b = append(b, '\n')

	t.buf = b
	_, err := t.w.Write(b)
	return err
}

func (t *Text) header(b []byte, tag string, query int) []byte {
	b = append(b, tag...)
	b = strconv.AppendInt(b, int64(query), 10)
	return append(b, ',')
}

// Flush writes buffered output without closing the destination.
func (t *Text) Flush() error {
	return t.w.Flush()
}

func (t *Text) Close() error {
	if err := t.w.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// appendScore uses %g with six significant digits.
func appendScore(b []byte, v float64) []byte {
	return strconv.AppendFloat(b, v, 'g', 6, 64)
}
