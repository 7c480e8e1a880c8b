package xrpl

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool is a bounded idle-session pool. It satisfies Dialer, so services
// keep the exact per-request acquire/operate/release contract: Dial hands
// out an idle session when one exists, Close returns it. A session that
// saw a transport error is discarded instead of being returned, so a
// broken socket is never handed to the next request.
type Pool struct {
	dialer Dialer
	logger *zap.Logger

	mu      sync.Mutex
	idle    []Conn
	maxIdle int
	closed  bool
}

// NewPool wraps dialer with an idle pool holding at most maxIdle sessions.
func NewPool(dialer Dialer, maxIdle int, logger *zap.Logger) *Pool {
	if maxIdle <= 0 {
		maxIdle = 2
	}
	return &Pool{dialer: dialer, maxIdle: maxIdle, logger: logger}
}

// Dial returns an idle session if one is available, otherwise dials a new
// one through the underlying dialer.
func (p *Pool) Dial(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return &pooledConn{pool: p, conn: conn}, nil
	}
	p.mu.Unlock()

	conn, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return &pooledConn{pool: p, conn: conn}, nil
}

// put returns a healthy session to the pool, or closes it when the pool is
// full or shut down.
func (p *Pool) put(conn Conn) error {
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return conn.Close()
}

// Shutdown closes all idle sessions and stops further reuse.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, c := range idle {
		if err := c.Close(); err != nil {
			p.logger.Warn("closing pooled ledger session", zap.Error(err))
		}
	}
}

// pooledConn tracks whether its session is still trustworthy. Any
// transport error marks it broken; Close then really closes instead of
// pooling.
type pooledConn struct {
	pool   *Pool
	conn   Conn
	broken bool
	done   bool
}

func (c *pooledConn) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	res, err := c.conn.Submit(ctx, txBlob)
	if err != nil {
		c.broken = true
	}
	return res, err
}

func (c *pooledConn) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	res, err := c.conn.AccountInfo(ctx, account)
	if err != nil {
		c.broken = true
	}
	return res, err
}

func (c *pooledConn) AccountObjects(ctx context.Context, account, objType string, limit int) ([]StateObject, error) {
	res, err := c.conn.AccountObjects(ctx, account, objType, limit)
	if err != nil {
		c.broken = true
	}
	return res, err
}

func (c *pooledConn) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	res, err := c.conn.ServerInfo(ctx)
	if err != nil {
		c.broken = true
	}
	return res, err
}

// Close releases the session back to the pool, or tears it down when it is
// broken. Idempotent like Session.Close.
func (c *pooledConn) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	if c.broken {
		return c.conn.Close()
	}
	return c.pool.put(c.conn)
}
