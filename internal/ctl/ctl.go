// Package ctl implements a local control-plane protocol for requesting
// external recovery of a stalled or corrupted channel: resetting the
// channel is the mitigation for a producer that died mid-publish.
//
// It dials a Unix socket, reconnects with backoff, and streams
// newline-delimited JSON envelopes: Request/Response flow between a
// dmxpctl CLI invocation and a long-running dmxpd daemon that has the
// region attached and can reset a channel's cursors and slot sequences.
package ctl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Envelope is the newline-delimited JSON frame exchanged over the
// socket: a {Type, Payload} pair.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ResetRequest asks the daemon to externally recover a channel: reset
// head, tail, and every slot's sequence back to their empty-for-cycle-0
// state. This is only safe when the caller knows no producer or
// consumer is still mid-operation on the channel.
type ResetRequest struct {
	ChannelID uint32 `json:"channel_id"`
}

// ResetResponse reports the outcome of a ResetRequest.
type ResetResponse struct {
	ChannelID uint32 `json:"channel_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Client dials a dmxpd control socket and issues requests against it:
// best-effort dial at construction, lazy reconnect on send failure,
// bounded retries.
type Client struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
	conn   net.Conn
}

// NewClient constructs a Client and makes a best-effort initial dial;
// the daemon may not be running yet, in which case Reset retries the
// dial on its own.
func NewClient(path string, logger zerolog.Logger) *Client {
	c := &Client{path: path, logger: logger}
	c.dial()
	return c
}

func (c *Client) dial() {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info().Str("path", c.path).Msg("ctl: connected to daemon")
}

// Reset sends a ResetRequest and waits for the matching ResetResponse.
func (c *Client) Reset(channelID uint32) (ResetResponse, error) {
	req, err := json.Marshal(ResetRequest{ChannelID: channelID})
	if err != nil {
		return ResetResponse{}, err
	}
	env, err := json.Marshal(Envelope{Type: "reset", Payload: req})
	if err != nil {
		return ResetResponse{}, err
	}
	env = append(env, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; attempt < 3; attempt++ {
		if c.conn == nil {
			c.mu.Unlock()
			time.Sleep(200 * time.Millisecond)
			c.mu.Lock()
			conn, dialErr := net.Dial("unix", c.path)
			if dialErr != nil {
				continue
			}
			c.conn = conn
			c.logger.Info().Str("path", c.path).Msg("ctl: reconnected to daemon")
		}

		if _, err := c.conn.Write(env); err != nil {
			c.conn.Close()
			c.conn = nil
			continue
		}

		reply, err := bufio.NewReader(c.conn).ReadBytes('\n')
		if err != nil {
			c.conn.Close()
			c.conn = nil
			continue
		}

		var respEnv Envelope
		if err := json.Unmarshal(reply, &respEnv); err != nil {
			return ResetResponse{}, fmt.Errorf("ctl: decode envelope: %w", err)
		}
		var resp ResetResponse
		if err := json.Unmarshal(respEnv.Payload, &resp); err != nil {
			return ResetResponse{}, fmt.Errorf("ctl: decode response: %w", err)
		}
		return resp, nil
	}
	return ResetResponse{}, fmt.Errorf("ctl: could not reach daemon at %s", c.path)
}

// Close closes the underlying connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}
