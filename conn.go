package wsftp

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tredeske/u/uerr"
)

// a parked continuation: the response parser and failure path for one
// outstanding request, plus the command info used to enrich errors
type pending_ struct {
	id         uint32
	expectType uint8
	cmd        CommandInfo

	// Interprets the matched response.  Runs in the dispatch context.
	// A non-nil return is a protocol violation and tears the session
	// down; the parser must complete its own continuation (responder or
	// callback) on every path before returning.
	onReply func(r *packetReader, typ uint8) error

	// Fails the continuation without a response: no connection, send
	// failure, or session teardown.
	onError func(err error)
}

// conn_ multiplexes requests over the bound Channel: it allocates ids,
// parks continuations in the correlation table, and routes each inbound
// frame to the matching continuation.
//
// Ids are monotonic modulo 2^32.  Id 0 is reserved and id 1 belongs to the
// handshake (the INIT/VERSION exchange carries no id on the wire, but is
// accounted as id 1), so ordinary requests start at 2 and wrap back to 2.
type conn_ struct {
	mux    sync.Mutex
	ch     Channel
	nextId uint32
	reqs   map[uint32]*pending_
	ended  bool

	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

const (
	errDupId     = uerr.Const("request id already in flight")
	errUnknownId = uerr.Const("response for unknown request id")
)

func (co *conn_) construct() {
	co.nextId = 2
	co.reqs = make(map[uint32]*pending_, 64)
}

// bind attaches the channel.  A conn binds exactly once.
func (co *conn_) bind(ch Channel) (err error) {
	const errRebind = uerr.Const("already bound to a channel")
	co.mux.Lock()
	defer co.mux.Unlock()
	if nil != co.ch || co.ended {
		return errRebind
	}
	co.ch = ch
	return
}

// parkAt registers a continuation under the given id without sending anything.
// Used for the handshake, which owns id 1.
func (co *conn_) parkAt(id uint32, p *pending_) (fatal error) {
	co.mux.Lock()
	defer co.mux.Unlock()
	if _, dup := co.reqs[id]; dup {
		return errDupId
	}
	p.id = id
	co.reqs[id] = p
	return
}

// submit finalizes the frame, parks the continuation, and hands the bytes
// to the channel.  All failures reach the continuation through onError;
// a non-nil return additionally signals a fault that must end the session.
func (co *conn_) submit(typ uint8, w *packetWriter, p *pending_) (fatal error) {
	co.mux.Lock()
	if nil == co.ch || co.ended {
		co.mux.Unlock()
		p.onError(noConnError(p.cmd))
		return nil
	}
	id := co.nextId
	co.nextId++
	if 0 == co.nextId { // wrapped: 0 is reserved, 1 is the handshake
		co.nextId = 2
	}
	if _, dup := co.reqs[id]; dup {
		co.mux.Unlock()
		p.onError(noConnError(p.cmd))
		return uerr.Chainf(errDupId, "id %d", id)
	}
	p.id = id
	co.reqs[id] = p
	ch := co.ch
	co.mux.Unlock()

	frame := w.finish(typ, id)
	err := ch.Send(frame)
	if err != nil {
		co.mux.Lock()
		delete(co.reqs, id)
		co.mux.Unlock()
		p.onError(uerr.Chainf(noConnError(p.cmd), "send"))
		return err
	}
	co.bytesSent.Add(uint64(len(frame)))
	return nil
}

// dispatch routes one inbound frame to its parked continuation.  The
// VERSION reply carries no id and is routed to the handshake's id 1.
func (co *conn_) dispatch(frame []byte) (fatal error) {
	if len(frame) < frameHeaderLen {
		return uerr.Chainf(errShortPacket, "inbound frame")
	}
	length := bigEnd_.Uint32(frame[:4])
	if int(length) != len(frame)-4 {
		return uerr.Chainf(errShortPacket,
			"frame length %d does not match %d content bytes",
			length, len(frame)-4)
	}
	typ := frame[4]
	r := &packetReader{buf: frame, pos: 5}

	var id uint32 = 1
	if sshFxpVersion != typ && sshFxpInit != typ {
		var err error
		id, err = r.readUint32()
		if err != nil {
			return uerr.Chainf(err, "inbound frame id")
		}
	}

	co.mux.Lock()
	p, found := co.reqs[id]
	if found {
		delete(co.reqs, id)
	}
	co.mux.Unlock()
	if !found {
		return uerr.Chainf(errUnknownId, "id %d, type %d", id, typ)
	}
	co.bytesRecv.Add(uint64(len(frame)))

	r.cmd = &p.cmd
	return p.onReply(r, typ)
}

// end detaches the channel and drains the correlation table.  The drained
// continuations are returned in id order for the caller to fail; nothing
// submits successfully afterward.
func (co *conn_) end() (pending []*pending_, ch Channel, wasEnded bool) {
	co.mux.Lock()
	defer co.mux.Unlock()
	if co.ended {
		return nil, nil, true
	}
	co.ended = true
	ch = co.ch
	co.ch = nil

	if 0 != len(co.reqs) {
		ids := make([]uint32, 0, len(co.reqs))
		for id := range co.reqs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		pending = make([]*pending_, 0, len(ids))
		for _, id := range ids {
			pending = append(pending, co.reqs[id])
		}
		clear(co.reqs)
	}
	return
}
