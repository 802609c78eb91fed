// Package client runs the peer side of the vine race. Each step feeds server
// bytes through the codec into the mirror and turns local intents into
// requests.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/louisbranch/phototropic/internal/platform/errors"
	"github.com/louisbranch/phototropic/internal/platform/timeouts"
	"github.com/louisbranch/phototropic/internal/services/vine/mirror"
	"github.com/louisbranch/phototropic/internal/services/vine/protocol"
	"github.com/louisbranch/phototropic/internal/services/vine/transport"
)

// ErrQuit is returned by Step after a quit intent.
var ErrQuit = errors.New("quit requested")

// Conn is the byte stream to the server; *transport.Client satisfies it.
type Conn interface {
	Send(data []byte) error
	Poll(timeout time.Duration, handle func([]byte)) error
	Close() error
}

type wireSender struct {
	conn Conn
}

func (s wireSender) Send(msg protocol.Message) error {
	return s.conn.Send(protocol.Encode(msg))
}

// Client owns one connection and the mirror fed by it.
type Client struct {
	conn    Conn
	mirror  *mirror.Mirror
	reader  *protocol.Reader
	intents IntentSource
}

// New returns a client over conn. scene receives confirmed segments and
// targets; it may be nil.
func New(conn Conn, scene mirror.Scene, intents IntentSource) *Client {
	return &Client{
		conn:    conn,
		mirror:  mirror.New(wireSender{conn: conn}, scene),
		reader:  protocol.NewReader(protocol.ToClient),
		intents: intents,
	}
}

// Dial connects to the server at addr and returns a client over the stream.
func Dial(ctx context.Context, addr string, scene mirror.Scene, intents IntentSource) (*Client, error) {
	conn, err := transport.Dial(ctx, addr, log.Printf)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn, scene, intents), nil
}

// Snapshot returns a consistent copy of the replica for rendering.
func (c *Client) Snapshot() mirror.View {
	return c.mirror.Snapshot()
}

// Step runs one frame. It waits up to timeout for server bytes, applies every
// whole message, then drains pending intents. It returns ErrQuit after a quit
// intent, MALFORMED_MESSAGE when the server stream cannot be applied and
// PEER_DISCONNECTED once the connection is gone.
func (c *Client) Step(timeout time.Duration) error {
	pollErr := c.conn.Poll(timeout, func(chunk []byte) {
		_, _ = c.reader.Write(chunk)
	})
	if err := c.apply(); err != nil {
		return err
	}
	if pollErr != nil {
		return apperrors.Wrap(apperrors.CodePeerDisconnected, "lost connection to server", pollErr)
	}
	return c.handleIntents()
}

func (c *Client) apply() error {
	for {
		msg, err := c.reader.Next()
		if errors.Is(err, protocol.ErrIncomplete) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.mirror.OnServerMessage(msg); err != nil {
			return err
		}
	}
}

func (c *Client) handleIntents() error {
	if c.intents == nil {
		return nil
	}
	for {
		intent, ok := c.intents.NextIntent()
		if !ok {
			return nil
		}
		switch intent.Kind {
		case IntentMove:
			c.mirror.RequestMove(intent.Direction)
		case IntentRestart:
			c.mirror.RequestRestart()
		case IntentQuit:
			return ErrQuit
		}
	}
}

// Run steps every frame until ctx ends, the player quits or the connection
// fails. onFrame, when set, gets the snapshot after each step. Quitting and
// cancellation return nil.
func (c *Client) Run(ctx context.Context, frame time.Duration, onFrame func(mirror.View)) error {
	if frame <= 0 {
		frame = timeouts.Frame
	}
	for ctx.Err() == nil {
		err := c.Step(frame)
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if onFrame != nil {
			onFrame(c.Snapshot())
		}
	}
	return nil
}

// Close ends the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
