package kafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	messages  []kafka.Message
	fetchErrs int
	committed []int64
	closed    bool
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.fetchErrs > 0 {
		f.fetchErrs--
		return kafka.Message{}, errors.New("leader not available")
	}
	if len(f.messages) == 0 {
		f.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestConsumerCommitsHandledAndSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		fetchErrs: 1,
		cancel:    cancel,
		messages: []kafka.Message{
			{Offset: 0, Value: []byte("ok")},
			{Offset: 1, Value: []byte("poison")},
			{Offset: 2, Value: []byte("retry")},
			{Offset: 3, Value: []byte("ok")},
		},
	}
	var seen []string
	c := newConsumer(r, "knn.queries", func(_ context.Context, _ []byte, value []byte) error {
		seen = append(seen, string(value))
		switch string(value) {
		case "poison":
			return fmt.Errorf("bad line: %w", ErrSkip)
		case "retry":
			return errors.New("downstream unavailable")
		}
		return nil
	})
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if want := []string{"ok", "poison", "retry", "ok"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("handled %v, want %v", seen, want)
	}
	if want := []int64{0, 1, 3}; !reflect.DeepEqual(r.committed, want) {
		t.Errorf("committed %v, want %v", r.committed, want)
	}
	if !r.closed {
		t.Error("reader not closed on shutdown")
	}
}

func TestDecodeJSON(t *testing.T) {
	type query struct {
		ID   string `json:"id"`
		Line string `json:"line"`
	}
	q, err := DecodeJSON[query]([]byte(`{"id":"a","line":"1:1"}`))
	if err != nil || q.ID != "a" || q.Line != "1:1" {
		t.Errorf("DecodeJSON = %+v, %v", q, err)
	}
	if _, err := DecodeJSON[query]([]byte("{")); err == nil {
		t.Error("expected error for truncated JSON")
	}
}

func TestEncode(t *testing.T) {
	msg, err := encode(Event{Key: "run:1", Value: map[string]int{"query": 1}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "run:1" || string(msg.Value) != `{"query":1}` {
		t.Errorf("message = %q %q", msg.Key, msg.Value)
	}
	if _, err := encode(Event{Value: func() {}}); err == nil {
		t.Error("expected marshal error")
	}
}
