package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	platformgrpc "github.com/louisbranch/phototropic/internal/platform/grpc"
	"github.com/louisbranch/phototropic/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a peer's end of the byte stream.
type Client struct {
	conn   *gogrpc.ClientConn
	stream gogrpc.ClientStream
	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.Mutex
	recv   chan []byte

	errOnce sync.Once
	done    chan struct{}
	err     error
}

// Dial connects to addr, waits for the transport service to report healthy
// and opens the stream. ctx bounds the dial only; the stream lives until Close.
func Dial(ctx context.Context, addr string, logf func(string, ...any), opts ...gogrpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = platformgrpc.DefaultClientDialOptions()
	}
	conn, err := platformgrpc.DialWithHealth(ctx, addr, ServiceName, timeouts.GRPCDial, logf, opts...)
	if err != nil {
		return nil, err
	}
	client, err := Open(context.WithoutCancel(ctx), conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

// Open starts a stream on an existing connection. The caller keeps ownership
// of cc.
func Open(ctx context.Context, cc gogrpc.ClientConnInterface) (*Client, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := cc.NewStream(streamCtx, &serviceDesc.Streams[0], streamMethod)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open transport stream: %w", err)
	}
	c := &Client{
		stream: stream,
		ctx:    streamCtx,
		cancel: cancel,
		recv:   make(chan []byte, defaultEventQueue),
		done:   make(chan struct{}),
	}
	go c.recvLoop()
	return c, nil
}

// Send writes data to the server. It is safe for concurrent use.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return c.Err()
	default:
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.stream.SendMsg(wrapperspb.Bytes(data)); err != nil {
		if errors.Is(err, io.EOF) {
			// The real reason surfaces from the receive side.
			return ErrClosed
		}
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Poll waits up to timeout for received bytes and hands every queued chunk to
// handle. Once the stream has ended and every chunk is drained it returns the
// stream's terminal error, ErrClosed for an orderly close.
func (c *Client) Poll(timeout time.Duration, handle func([]byte)) error {
	if timeout < 0 {
		timeout = 0
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk, ok := <-c.recv:
		if !ok {
			return c.Err()
		}
		handle(chunk)
	case <-timer.C:
		return nil
	}
	for {
		select {
		case chunk, ok := <-c.recv:
			if !ok {
				return c.Err()
			}
			handle(chunk)
		default:
			return nil
		}
	}
}

// Done is closed when the stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal stream error, or nil while the stream is open.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close ends the stream and, for dialed clients, the connection.
func (c *Client) Close() error {
	c.sendMu.Lock()
	_ = c.stream.CloseSend()
	c.sendMu.Unlock()
	c.cancel()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) recvLoop() {
	defer close(c.recv)
	for {
		frame := new(wrapperspb.BytesValue)
		if err := c.stream.RecvMsg(frame); err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrClosed
			}
			c.finish(err)
			return
		}
		if len(frame.GetValue()) == 0 {
			continue
		}
		select {
		case c.recv <- frame.GetValue():
		case <-c.ctx.Done():
			c.finish(c.ctx.Err())
			return
		}
	}
}

func (c *Client) finish(err error) {
	c.errOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}
