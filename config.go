package wsftp

import (
	"errors"

	"github.com/tredeske/u/uconfig"
)

// A ClientOption is a function which applies configuration to a Client.
type ClientOption func(*Client) error

// Set the maximum size (bytes) of the write payload.
//
// The larger the payload, the more efficient the transport.
//
// The default is 32768 (32KiB), and that is the largest size that any
// compliant SFTP server must support.
func WithMaxPacket(size int) ClientOption {
	return func(c *Client) error {
		if size < 8192 {
			return errors.New("maxPacket must be greater or equal to 8192")
		}
		c.maxPacket = size
		return nil
	}
}

// Set how many empty DATA responses a read tolerates before giving up.
// Some servers answer a read with no data a few times before delivering.
//
// The default is 4.
func WithReadRetries(n int) ClientOption {
	return func(c *Client) error {
		if n < 0 {
			return errors.New("readRetries must not be negative")
		}
		c.readRetries = n
		return nil
	}
}

// OnReady installs a callback invoked once when the version handshake
// completes, with nil on success.
func OnReady(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onReady = fn
		return nil
	}
}

// OnError installs a callback for faults that end the session: protocol
// violations, dispatch panics, send failures.  Without one, faults are
// logged.
func OnError(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onError = fn
		return nil
	}
}

// OnClose installs a callback invoked once when the session ends, with the
// channel's terminal error, if any.
func OnClose(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onClose = fn
		return nil
	}
}

// FromConfig maps a config section onto client options:
//
//	maxPacket:   32768       # bytes per write payload
//	readRetries: 4           # empty read responses tolerated
func FromConfig(config *uconfig.Section) (opts []ClientOption, err error) {
	maxPacket := maxWriteBlockLength
	readRetries := 4
	err = config.Chain().
		WarnExtraKeys("maxPacket", "readRetries").
		GetInt("maxPacket", &maxPacket).
		GetInt("readRetries", &readRetries).
		Error
	if err != nil {
		return
	}
	opts = append(opts, WithMaxPacket(maxPacket), WithReadRetries(readRetries))
	return
}
