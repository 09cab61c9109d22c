package wsftp

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/tredeske/u/uerr"
)

// A Channel is the framed byte stream a Client multiplexes requests over.
// The channel owns the transport: Send hands it one complete frame, and the
// channel pushes each complete inbound frame to the message subscriber and
// a single close notification (with the terminal error, if any) to the
// close subscriber.
//
// Subscriptions are installed by Client.Bind before any traffic flows, and
// the channel must deliver message and close callbacks serially with
// respect to each other.
type Channel interface {
	Send(frame []byte) error
	OnMessage(fn func(frame []byte))
	OnClose(fn func(err error))
	Close() error
}

const ErrChannelClosed = uerr.Const("sftp channel closed")

// StreamChannel adapts a byte stream (an SSH session's pipes, a TCP
// connection, a net.Pipe in tests) into a Channel by splitting the inbound
// stream on the uint32 length prefixes.
type StreamChannel struct {
	r io.Reader
	w io.WriteCloser

	maxFrame  int
	wmux      sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once

	onMessage func([]byte)
	onClose   func(error)
}

// NewStreamChannel wraps rd/wr.  Call Start after the subscribers are
// installed to begin delivering inbound frames.
func NewStreamChannel(rd io.Reader, wr io.WriteCloser) *StreamChannel {
	return &StreamChannel{
		r:        rd,
		w:        wr,
		maxFrame: maxReadBlockLength + packetHeadroom,
	}
}

func (ch *StreamChannel) OnMessage(fn func(frame []byte)) { ch.onMessage = fn }
func (ch *StreamChannel) OnClose(fn func(err error))      { ch.onClose = fn }

func (ch *StreamChannel) Send(frame []byte) (err error) {
	if ch.closed.Load() {
		return ErrChannelClosed
	}
	ch.wmux.Lock()
	defer ch.wmux.Unlock()
	_, err = ch.w.Write(frame)
	if err != nil {
		err = uerr.Chainf(err, "failed to send packet")
	}
	return
}

func (ch *StreamChannel) Close() error {
	ch.shutdown(nil)
	return nil
}

func (ch *StreamChannel) shutdown(cause error) {
	if ch.closed.CompareAndSwap(false, true) {
		ch.w.Close()
	}
	ch.closeOnce.Do(func() {
		if nil != ch.onClose {
			ch.onClose(cause)
		}
	})
}

// Start launches the reader loop.  It returns immediately; frames flow to
// the message subscriber until the stream ends or a framing error occurs.
func (ch *StreamChannel) Start() {
	go ch.reader()
}

func (ch *StreamChannel) reader() {
	var cause error
	defer func() { ch.shutdown(cause) }()

	var head [4]byte
	for {
		_, err := io.ReadFull(ch.r, head[:])
		if err != nil {
			if !ch.closed.Load() && io.EOF != err &&
				io.ErrClosedPipe != err && io.ErrUnexpectedEOF != err {
				cause = uerr.Chainf(err, "read packet header")
			}
			return
		}
		length := bigEnd_.Uint32(head[:])
		if 0 == length || int(length) > ch.maxFrame {
			cause = uerr.Chainf(errShortPacket,
				"recv pkt: %d bytes, but max is %d", length, ch.maxFrame)
			return
		}
		frame := make([]byte, 4+length)
		copy(frame, head[:])
		_, err = io.ReadFull(ch.r, frame[4:])
		if err != nil {
			if !ch.closed.Load() {
				cause = uerr.Chainf(err, "read packet body")
			}
			return
		}
		if nil != ch.onMessage {
			ch.onMessage(frame)
		}
	}
}
