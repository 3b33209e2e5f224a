package halo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/transport"
)

// recorder is a Transport that logs calls and never blocks.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fill  map[int]core.Row
	fail  error
}

func (r *recorder) Send(_ context.Context, to int, _ core.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("send %d", to))
	return r.fail
}

func (r *recorder) Recv(_ context.Context, from int, dst core.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf("recv %d", from))
	if r.fail != nil {
		return r.fail
	}
	if row, ok := r.fill[from]; ok {
		copy(dst, row)
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func TestExchangeOrder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		topo core.Topology
		want []string
	}{
		{core.Topology{ID: 0, Size: 1}, nil},
		{core.Topology{ID: 0, Size: 3}, []string{"send 1", "recv 1"}},
		{core.Topology{ID: 1, Size: 3}, []string{"recv 0", "recv 2", "send 0", "send 2"}},
		{core.Topology{ID: 2, Size: 3}, []string{"send 1", "recv 1"}},
		{core.Topology{ID: 2, Size: 5}, []string{"send 1", "send 3", "recv 1", "recv 3"}},
		{core.Topology{ID: 3, Size: 4}, []string{"recv 2", "send 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.topo.String(), func(t *testing.T) {
			rec := &recorder{}
			row := core.NewRow(3)
			_, _, err := New(tt.topo, rec).Exchange(context.Background(), row, core.NewRow(3), core.NewRow(3))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.calls)
		})
	}
}

func TestExchangeEdgesReportNoNeighbor(t *testing.T) {
	t.Parallel()
	rec := &recorder{fill: map[int]core.Row{1: core.MustParseRow("111")}}
	upper, lower, err := New(core.Topology{ID: 0, Size: 2}, rec).
		Exchange(context.Background(), core.NewRow(3), core.NewRow(3), core.NewRow(3))
	require.NoError(t, err)

	assert.False(t, upper.Present())
	require.True(t, lower.Present())
	assert.Equal(t, "111", lower.Row().String())
}

func TestExchangeSingleParticipant(t *testing.T) {
	t.Parallel()
	upper, lower, err := New(core.Topology{ID: 0, Size: 1}, &recorder{fail: errors.New("unused")}).
		Exchange(context.Background(), core.NewRow(2), core.NewRow(2), core.NewRow(2))
	require.NoError(t, err)
	assert.False(t, upper.Present())
	assert.False(t, lower.Present())
}

func TestExchangeWrapsTransportError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	_, _, err := New(core.Topology{ID: 1, Size: 2}, &recorder{fail: boom}).
		Exchange(context.Background(), core.NewRow(2), core.NewRow(2), core.NewRow(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "participant 1 recv from 0")
}

func TestExchangeBufferSize(t *testing.T) {
	t.Parallel()
	_, _, err := New(core.Topology{ID: 0, Size: 2}, &recorder{}).
		Exchange(context.Background(), core.NewRow(3), core.NewRow(2), core.NewRow(3))
	assert.ErrorIs(t, err, ErrBufferSize)
}

// exchangeAll runs one exchange for every participant over a mesh and
// returns what each one received.
func exchangeAll(t *testing.T, rows []core.Row) (uppers, lowers []core.Neighbor) {
	t.Helper()
	n, columns := len(rows), len(rows[0])
	mesh, err := transport.NewMesh(n, columns)
	require.NoError(t, err)
	defer mesh.Close()

	uppers = make([]core.Neighbor, n)
	lowers = make([]core.Neighbor, n)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for id := range rows {
		ep, err := mesh.Endpoint(id)
		require.NoError(t, err)
		ex := New(core.Topology{ID: id, Size: n}, ep)
		g.Go(func() error {
			up, down, err := ex.Exchange(gctx, rows[id], core.NewRow(columns), core.NewRow(columns))
			uppers[id], lowers[id] = up, down
			return err
		})
	}
	require.NoError(t, g.Wait(), "exchange deadlocked or failed")
	return uppers, lowers
}

func TestExchangeOverMesh(t *testing.T) {
	t.Parallel()
	for n := 1; n <= 9; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()
			rows := make([]core.Row, n)
			for id := range rows {
				// Distinct rows: bit pattern of id over 4 columns.
				rows[id] = core.NewRow(4)
				for x := 0; x < 4; x++ {
					if id&(1<<x) != 0 {
						rows[id][x] = core.Alive
					}
				}
			}

			uppers, lowers := exchangeAll(t, rows)
			for id := 0; id < n; id++ {
				if id == 0 {
					assert.False(t, uppers[id].Present())
				} else {
					assert.Equal(t, rows[id-1].String(), uppers[id].String(), "participant %d upper", id)
				}
				if id == n-1 {
					assert.False(t, lowers[id].Present())
				} else {
					assert.Equal(t, rows[id+1].String(), lowers[id].String(), "participant %d lower", id)
				}
			}
		})
	}
}

func TestExchangeCountsMessages(t *testing.T) {
	sent := testutil.ToFloat64(messagesTotal.WithLabelValues("sent"))
	received := testutil.ToFloat64(messagesTotal.WithLabelValues("received"))

	rows := []core.Row{core.NewRow(2), core.NewRow(2), core.NewRow(2)}
	exchangeAll(t, rows)

	// Two links, two directions each.
	assert.Equal(t, sent+4, testutil.ToFloat64(messagesTotal.WithLabelValues("sent")))
	assert.Equal(t, received+4, testutil.ToFloat64(messagesTotal.WithLabelValues("received")))
}
