package model

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sbl8/rowlife/core"
)

// Consumer receives each participant's final row. Implementations must be
// safe for concurrent use. The row is only valid for the duration of the
// call.
type Consumer interface {
	Consume(id int, row core.Row) error
}

// Flusher is implemented by consumers that buffer output until the run
// ends.
type Flusher interface {
	Flush() error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(id int, row core.Row) error

// Consume calls f.
func (f ConsumerFunc) Consume(id int, row core.Row) error {
	return f(id, row)
}

// TextConsumer writes "id:row" lines as rows arrive. Lines from different
// participants never interleave, but their order is not defined.
type TextConsumer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

// NewTextConsumer writes to w.
func NewTextConsumer(w io.Writer) *TextConsumer {
	return &TextConsumer{w: w}
}

// Consume writes one line.
func (c *TextConsumer) Consume(id int, row core.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = fmt.Appendf(c.buf[:0], "%d:", id)
	c.buf = core.AppendText(c.buf, row)
	c.buf = append(c.buf, '\n')
	_, err := c.w.Write(c.buf)
	return err
}

// Collector keeps every final row in memory.
type Collector struct {
	mu   sync.Mutex
	rows map[int]core.Row
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{rows: make(map[int]core.Row)}
}

// Consume stores a copy of row.
func (c *Collector) Consume(id int, row core.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.rows[id]; dup {
		return fmt.Errorf("collector: participant %d reported twice", id)
	}
	c.rows[id] = row.Clone()
	return nil
}

// Len returns the number of rows collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// Row returns the row reported by participant id.
func (c *Collector) Row(id int) (core.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rows[id]
	return r, ok
}

// IDs returns the reporting participants in order.
func (c *Collector) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.rows))
	for id := range c.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Lattice assembles the collected rows into a lattice of the given height.
// Missing rows are an error.
func (c *Collector) Lattice(rows int) (*Lattice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := &Lattice{Rows: make([]core.Row, rows)}
	for id := 0; id < rows; id++ {
		r, ok := c.rows[id]
		if !ok {
			return nil, fmt.Errorf("collector: participant %d did not report", id)
		}
		l.Rows[id] = r.Clone()
		l.Columns = len(r)
	}
	return l, nil
}
