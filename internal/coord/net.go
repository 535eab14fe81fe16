package coord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	frameHello     = "hello"
	frameBroadcast = "broadcast"
	frameArrive    = "arrive"
	frameRelease   = "release"
)

// dialRetryInterval is the pause between attempts to reach rank 0 while
// it is not yet listening.
const dialRetryInterval = 50 * time.Millisecond

// frame is the unit exchanged between participants.
type frame struct {
	Kind    string  `cbor:"kind"`
	Rank    int     `cbor:"rank"`
	Size    int     `cbor:"size"`
	Outcome Outcome `cbor:"outcome"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("coord: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("coord: CBOR decoder initialization failed: " + err.Error())
	}
}

// peer is one end of a participant connection.
type peer struct {
	rank int
	conn net.Conn
	enc  *cbor.Encoder
	dec  *cbor.Decoder
}

func newPeer(rank int, conn net.Conn) *peer {
	return &peer{
		rank: rank,
		conn: conn,
		enc:  encMode.NewEncoder(conn),
		dec:  decMode.NewDecoder(conn),
	}
}

// bind applies ctx to the connection: its deadline, and cancellation by
// forcing pending I/O to time out. The returned func must be called when
// the operation ends.
func (p *peer) bind(ctx context.Context) func() bool {
	deadline, _ := ctx.Deadline()
	_ = p.conn.SetDeadline(deadline)
	return context.AfterFunc(ctx, func() {
		_ = p.conn.SetDeadline(time.Unix(1, 0))
	})
}

func (p *peer) send(ctx context.Context, f frame) error {
	stop := p.bind(ctx)
	defer stop()
	if err := p.enc.Encode(f); err != nil {
		return ioError(ctx, fmt.Errorf("send %s to rank %d: %w", f.Kind, p.rank, err))
	}
	return nil
}

func (p *peer) recv(ctx context.Context, kind string) (frame, error) {
	stop := p.bind(ctx)
	defer stop()
	var f frame
	if err := p.dec.Decode(&f); err != nil {
		return f, ioError(ctx, fmt.Errorf("receive %s from rank %d: %w", kind, p.rank, err))
	}
	if f.Kind != kind {
		return f, fmt.Errorf("coord: expected %s frame from rank %d, got %q", kind, p.rank, f.Kind)
	}
	return f, nil
}

// ioError prefers the context error when ctx caused the failure.
func ioError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

// NetComm connects the participants of a job running in separate
// processes. Rank 0 listens; every other rank dials it once.
type NetComm struct {
	rank int
	size int

	ln net.Listener

	// followers is indexed by rank on rank 0; root is set on followers.
	followers []*peer
	root      *peer

	mu sync.Mutex
}

// Settings locate a participant in a networked job.
type Settings struct {
	Rank int
	Size int
	Addr string
}

// Listen binds the rank 0 endpoint of a job of size participants.
// Accept must be called before any collective operation.
func Listen(addr string, size int) (*NetComm, error) {
	if size < 1 {
		return nil, fmt.Errorf("coord: invalid job size %d", size)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("coord: listen on %s: %w", addr, err)
	}
	return &NetComm{
		rank:      0,
		size:      size,
		ln:        ln,
		followers: make([]*peer, size),
	}, nil
}

// Addr returns the listening address of rank 0, or nil on followers.
func (c *NetComm) Addr() net.Addr {
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Accept waits until every follower has connected and introduced itself,
// then stops listening.
func (c *NetComm) Accept(ctx context.Context) error {
	if c.ln == nil {
		return errors.New("coord: accept on a follower")
	}
	defer c.ln.Close()

	stop := context.AfterFunc(ctx, func() { c.ln.Close() })
	defer stop()

	for joined := 1; joined < c.size; {
		conn, err := c.ln.Accept()
		if err != nil {
			return ioError(ctx, fmt.Errorf("coord: accept: %w", err))
		}

		p := newPeer(-1, conn)
		hello, err := p.recv(ctx, frameHello)
		if err != nil {
			conn.Close()
			return err
		}
		if hello.Size != c.size || hello.Rank < 1 || hello.Rank >= c.size {
			conn.Close()
			return fmt.Errorf("coord: rank %d of %d cannot join a job of %d", hello.Rank, hello.Size, c.size)
		}
		if c.followers[hello.Rank] != nil {
			conn.Close()
			return fmt.Errorf("coord: rank %d joined twice", hello.Rank)
		}
		p.rank = hello.Rank
		c.followers[hello.Rank] = p
		joined++
	}
	return nil
}

// Dial connects follower rank to the rank 0 endpoint at addr, retrying
// until rank 0 is listening or ctx is done.
func Dial(ctx context.Context, addr string, rank, size int) (*NetComm, error) {
	if rank < 1 || rank >= size {
		return nil, fmt.Errorf("coord: invalid follower rank %d for job size %d", rank, size)
	}

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			c := &NetComm{rank: rank, size: size, root: newPeer(0, conn)}
			if err := c.root.send(ctx, frame{Kind: frameHello, Rank: rank, Size: size}); err != nil {
				conn.Close()
				return nil, err
			}
			return c, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("coord: dial %s: %w", addr, ctx.Err())
		case <-time.After(dialRetryInterval):
		}
	}
}

// Connect joins the job described by s: rank 0 listens and waits for
// the followers, other ranks dial.
func Connect(ctx context.Context, s Settings) (*NetComm, error) {
	if s.Rank != 0 {
		return Dial(ctx, s.Addr, s.Rank, s.Size)
	}
	c, err := Listen(s.Addr, s.Size)
	if err != nil {
		return nil, err
	}
	if err := c.Accept(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *NetComm) Rank() int { return c.rank }
func (c *NetComm) Size() int { return c.size }

func (c *NetComm) Broadcast(ctx context.Context, msg Outcome) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank != 0 {
		f, err := c.root.recv(ctx, frameBroadcast)
		if err != nil {
			return Outcome{}, err
		}
		return f.Outcome, nil
	}

	for _, p := range c.followers[1:] {
		if err := p.send(ctx, frame{Kind: frameBroadcast, Outcome: msg}); err != nil {
			return Outcome{}, err
		}
	}
	return msg, nil
}

func (c *NetComm) Barrier(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rank != 0 {
		if err := c.root.send(ctx, frame{Kind: frameArrive, Rank: c.rank}); err != nil {
			return err
		}
		_, err := c.root.recv(ctx, frameRelease)
		return err
	}

	for _, p := range c.followers[1:] {
		if _, err := p.recv(ctx, frameArrive); err != nil {
			return err
		}
	}
	for _, p := range c.followers[1:] {
		if err := p.send(ctx, frame{Kind: frameRelease}); err != nil {
			return err
		}
	}
	return nil
}

// Close releases all connections.
func (c *NetComm) Close() error {
	var errs []error
	if c.ln != nil {
		if err := c.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if c.root != nil {
		errs = append(errs, c.root.conn.Close())
	}
	for _, p := range c.followers {
		if p != nil {
			errs = append(errs, p.conn.Close())
		}
	}
	return errors.Join(errs...)
}
