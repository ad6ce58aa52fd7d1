// Package rtltcp implements the client side of the rtl_tcp protocol: a
// TCP stream of unsigned 8-bit IQ samples from an RTL2832 dongle, with
// 5-byte command frames flowing the other way. The protocol is
// write-only — the server never reports its state back — so getters
// return the last commanded value.
package rtltcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"hz.tools/rf"
)

// Command opcodes from the rtl_tcp wire protocol. Servers ignore
// opcodes they do not know, so sending an extension command to a stock
// server is harmless.
const (
	cmdSetFrequency  = 0x01
	cmdSetSampleRate = 0x02
	cmdSetGainMode   = 0x03
	cmdSetGain       = 0x04
	cmdSetAGCMode    = 0x08
	cmdSetBandwidth  = 0x0e // fork extension; 0 = automatic
)

const (
	magic       = "RTL0"
	bannerBytes = 12 // magic + tuner type + gain count

	dialTimeout = 5 * time.Second
)

// Client is a connection to an rtl_tcp server. It implements both the
// IQ source and tuner interfaces of the receiver core. Safe for one
// reader plus concurrent command senders.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader

	wmu sync.Mutex // serializes command frames

	stateMu sync.Mutex
	freq    rf.Hz
	gain    float64

	tunerType uint32
	gainCount uint32

	buf []byte
}

// Dial connects to an rtl_tcp server and validates its banner.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rtltcp: dial %s: %w", addr, err)
	}

	banner := make([]byte, bannerBytes)
	if err := conn.SetReadDeadline(time.Now().Add(dialTimeout)); err == nil {
		defer conn.SetReadDeadline(time.Time{})
	}
	if _, err := io.ReadFull(conn, banner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rtltcp: read banner from %s: %w", addr, err)
	}
	if string(banner[:4]) != magic {
		conn.Close()
		return nil, fmt.Errorf("rtltcp: %s is not an rtl_tcp server (banner %q)", addr, banner[:4])
	}

	return &Client{
		conn:      conn,
		rd:        bufio.NewReaderSize(conn, 1<<16),
		tunerType: binary.BigEndian.Uint32(banner[4:8]),
		gainCount: binary.BigEndian.Uint32(banner[8:12]),
	}, nil
}

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Name() string { return "rtl_tcp:" + c.conn.RemoteAddr().String() }

// TunerType returns the tuner chip identifier from the server banner.
func (c *Client) TunerType() uint32 { return c.tunerType }

// command sends one 5-byte frame: opcode followed by a big-endian u32.
func (c *Client) command(op byte, arg uint32) error {
	var frame [5]byte
	frame[0] = op
	binary.BigEndian.PutUint32(frame[1:], arg)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(frame[:]); err != nil {
		return fmt.Errorf("rtltcp: command 0x%02x: %w", op, err)
	}
	return nil
}

// SetCenterFrequency commands a new tuner center frequency.
func (c *Client) SetCenterFrequency(freq rf.Hz) error {
	if freq <= 0 {
		return fmt.Errorf("rtltcp: invalid frequency %v", freq)
	}
	if err := c.command(cmdSetFrequency, uint32(freq)); err != nil {
		return err
	}
	c.stateMu.Lock()
	c.freq = freq
	c.stateMu.Unlock()
	return nil
}

// CenterFrequency returns the last commanded center frequency. The wire
// protocol has no read-back, so this is the client's own record.
func (c *Client) CenterFrequency() (rf.Hz, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.freq == 0 {
		return 0, fmt.Errorf("rtltcp: frequency not yet set")
	}
	return c.freq, nil
}

// SetSampleRate commands the capture sample rate in Hz.
func (c *Client) SetSampleRate(rate uint32) error {
	return c.command(cmdSetSampleRate, rate)
}

// SetGain switches to manual gain mode and commands the gain in dB.
// Negative gain selects hardware AGC instead.
func (c *Client) SetGain(db float64) error {
	if db < 0 {
		if err := c.command(cmdSetGainMode, 0); err != nil {
			return err
		}
		return c.command(cmdSetAGCMode, 1)
	}
	if err := c.command(cmdSetGainMode, 1); err != nil {
		return err
	}
	// The wire unit is tenths of a dB.
	if err := c.command(cmdSetGain, uint32(db*10)); err != nil {
		return err
	}
	c.stateMu.Lock()
	c.gain = db
	c.stateMu.Unlock()
	return nil
}

// Gain returns the last commanded manual gain in dB.
func (c *Client) Gain() (float64, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.gain, nil
}

// SetBandwidth commands the tuner filter bandwidth; 0 requests
// automatic selection. Stock servers without the extension ignore it.
func (c *Client) SetBandwidth(bw rf.Hz) error {
	if bw < 0 {
		return fmt.Errorf("rtltcp: invalid bandwidth %v", bw)
	}
	return c.command(cmdSetBandwidth, uint32(bw))
}

// ReadIQ fills out with complex samples decoded from the unsigned 8-bit
// IQ stream and returns how many were produced. It blocks until at
// least one full sample pair arrives.
func (c *Client) ReadIQ(out []complex64) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	want := len(out) * 2
	if cap(c.buf) < want {
		c.buf = make([]byte, want)
	}
	raw := c.buf[:want]

	n, err := io.ReadFull(c.rd, raw)
	pairs := n / 2
	for i := 0; i < pairs; i++ {
		re := (float32(raw[2*i]) - 127.5) / 127.5
		im := (float32(raw[2*i+1]) - 127.5) / 127.5
		out[i] = complex(re, im)
	}
	if err != nil && (err == io.ErrUnexpectedEOF && pairs > 0) {
		err = nil
	}
	if err != nil {
		return pairs, fmt.Errorf("rtltcp: read stream: %w", err)
	}
	return pairs, nil
}
