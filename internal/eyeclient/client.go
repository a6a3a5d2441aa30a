// SPDX-License-Identifier: Apache-2.0

// Package eyeclient sends JSON mood/look events to the eye service over
// a persistent Unix stream socket, framed with a 4-byte little-endian
// length prefix ahead of the JSON payload. Grounded verbatim on
// archive/brain_daemon_skeleton/eye_client_unix.cpp.
package eyeclient

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
)

// Client is a connected eye-service socket. A zero Client is not
// usable; construct with Dial.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	path string
}

// Dial connects to the eye service's Unix stream socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("eyeclient: dial %s: %w", path, err)
	}
	return &Client{conn: conn, path: path}, nil
}

// SendEvent writes json as a length-prefixed frame: a 4-byte
// little-endian byte count followed by the raw JSON bytes. Returns an
// error rather than silently dropping, leaving "log and continue" to
// the caller since a lost mood event is cosmetic, never fatal.
func (c *Client) SendEvent(json string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("eyeclient: not connected")
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(json)))

	if _, err := c.conn.Write(header[:]); err != nil {
		return fmt.Errorf("eyeclient: write length: %w", err)
	}
	if _, err := c.conn.Write([]byte(json)); err != nil {
		return fmt.Errorf("eyeclient: write payload: %w", err)
	}
	return nil
}

// IsConnected reports whether the client still holds an open socket.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close disconnects from the eye service.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
