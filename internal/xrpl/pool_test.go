package xrpl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingConn tracks close calls and can be scripted to fail.
type countingConn struct {
	closed  int
	failOps bool
}

func (c *countingConn) Submit(context.Context, string) (*SubmitResult, error) {
	if c.failOps {
		return nil, ErrSubmission
	}
	return &SubmitResult{Code: "tesSUCCESS"}, nil
}

func (c *countingConn) AccountInfo(context.Context, string) (*AccountInfo, error) {
	if c.failOps {
		return nil, ErrQuery
	}
	return &AccountInfo{Sequence: 1}, nil
}

func (c *countingConn) AccountObjects(context.Context, string, string, int) ([]StateObject, error) {
	if c.failOps {
		return nil, ErrQuery
	}
	return nil, nil
}

func (c *countingConn) ServerInfo(context.Context) (*ServerInfo, error) {
	if c.failOps {
		return nil, ErrQuery
	}
	return &ServerInfo{ServerState: "full"}, nil
}

func (c *countingConn) Close() error {
	c.closed++
	return nil
}

// countingDialer hands out fresh countingConns.
type countingDialer struct {
	dials int
	conns []*countingConn
	fail  bool
}

func (d *countingDialer) Dial(context.Context) (Conn, error) {
	if d.fail {
		return nil, ErrConnection
	}
	d.dials++
	c := &countingConn{}
	d.conns = append(d.conns, c)
	return c, nil
}

func TestPool_reusesHealthySession(t *testing.T) {
	d := &countingDialer{}
	p := NewPool(d, 2, zap.NewNop())

	conn, err := p.Dial(context.Background())
	require.NoError(t, err)
	_, err = conn.ServerInfo(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn2, err := p.Dial(context.Background())
	require.NoError(t, err)
	defer conn2.Close()

	assert.Equal(t, 1, d.dials, "second acquire should reuse the pooled session")
	assert.Equal(t, 0, d.conns[0].closed, "pooled session must stay open")
}

func TestPool_discardsBrokenSession(t *testing.T) {
	d := &countingDialer{}
	p := NewPool(d, 2, zap.NewNop())

	conn, err := p.Dial(context.Background())
	require.NoError(t, err)
	d.conns[0].failOps = true
	_, err = conn.Submit(context.Background(), "DEADBEEF")
	require.Error(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, 1, d.conns[0].closed, "broken session must be torn down, not pooled")

	_, err = p.Dial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.dials, "a broken session must never be handed out again")
}

func TestPool_closeIdempotent(t *testing.T) {
	d := &countingDialer{}
	p := NewPool(d, 1, zap.NewNop())

	conn, err := p.Dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	// Only one idle copy may exist.
	_, err = p.Dial(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.dials)
}

func TestPool_boundedIdle(t *testing.T) {
	d := &countingDialer{}
	p := NewPool(d, 1, zap.NewNop())

	a, err := p.Dial(context.Background())
	require.NoError(t, err)
	b, err := p.Dial(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	// Second release exceeds maxIdle and must close the session.
	assert.Equal(t, 1, d.conns[0].closed+d.conns[1].closed)
}

func TestPool_shutdownClosesIdle(t *testing.T) {
	d := &countingDialer{}
	p := NewPool(d, 2, zap.NewNop())

	conn, err := p.Dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	p.Shutdown()
	assert.Equal(t, 1, d.conns[0].closed)

	_, err = p.Dial(context.Background())
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestPool_propagatesDialFailure(t *testing.T) {
	d := &countingDialer{fail: true}
	p := NewPool(d, 2, zap.NewNop())

	_, err := p.Dial(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}
