// Package control implements the TCP control channel (length-prefixed
// framing, as a sender and receiver both directions) and the injection
// controller state machine that rides on top of it.
package control

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Channel is a length-prefixed message framing over a TCP connection: each
// message is a 4-byte big-endian length L followed by L payload bytes, in
// both directions. Reads loop until the full frame arrives or the peer
// closes.
type Channel struct {
	conn net.Conn
}

// Dial opens the control channel to hostname:port with TCP_NODELAY set, the
// way the reference plugin connects to its controller at install time.
func Dial(hostname string, port int) (*Channel, error) {
	conn, err := net.Dial("tcp", net.JoinHostPort(hostname, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("control: dial %s:%d: %w", hostname, port, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("control: set TCP_NODELAY: %w", err)
		}
	}
	return &Channel{conn: conn}, nil
}

// NewChannel wraps an already-established connection, for tests that prefer
// net.Pipe or a listener over a real dial.
func NewChannel(conn net.Conn) *Channel {
	return &Channel{conn: conn}
}

// Close shuts the connection down for both reads and writes before closing
// the file descriptor, matching the reference plugin's SHUT_RDWR-then-close
// exit sequence.
func (c *Channel) Close() error {
	if tcp, ok := c.conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
		_ = tcp.CloseWrite()
	}
	return c.conn.Close()
}

// Send writes one length-prefixed frame: a 4-byte big-endian length followed
// by payload.
func (c *Channel) Send(payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := c.conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("control: write length: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("control: write payload: %w", err)
	}
	return nil
}

// SendString frames s as ASCII payload bytes.
func (c *Channel) SendString(s string) error {
	return c.Send([]byte(s))
}

// SendDecimal frames v as an ASCII decimal integer.
func (c *Channel) SendDecimal(v uint64) error {
	return c.SendString(strconv.FormatUint(v, 10))
}

// SendHex frames v as an ASCII hex integer, matching the reference plugin's
// "0x%08X" formatting convention.
func (c *Channel) SendHex(v uint32) error {
	return c.SendString(fmt.Sprintf("0x%08X", v))
}

// SendByte frames a single byte payload — used for the is-valid report
// during the injection handshake.
func (c *Channel) SendByte(b byte) error {
	return c.Send([]byte{b})
}

// Recv reads one length-prefixed frame in full, looping until the complete
// payload has arrived or the peer closes mid-frame.
func (c *Channel) Recv() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("control: read length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return nil, fmt.Errorf("control: read payload: %w", err)
		}
	}
	return payload, nil
}

// RecvString reads one frame and returns it as a string.
func (c *Channel) RecvString() (string, error) {
	b, err := c.Recv()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RecvDecimal reads one frame and parses it as an ASCII decimal integer.
func (c *Channel) RecvDecimal() (uint64, error) {
	s, err := c.RecvString()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("control: parse decimal %q: %w", s, err)
	}
	return v, nil
}
