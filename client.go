package wsftp

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tredeske/u/uerr"
	"github.com/tredeske/u/ulog"
)

// surfaced when the handshake closes the channel
const errCodeHandshake = 3002

const (
	ErrInvalidHandle = uerr.Const("invalid handle")

	// a single write may not exceed the negotiated packet payload
	ErrWriteTooLarge = uerr.Const("write exceeds maximum packet payload")
)

// Client is an SFTP v3 session over a Channel.
//
// A Client is created detached, attaches to its channel with Bind (or one
// of the convenience constructors), becomes usable once the VERSION
// exchange completes, and stays usable until Close or until the channel
// goes away.  Requests may be issued concurrently; responses complete in
// arrival order, paired by request id.
type Client struct {
	conn     conn_
	respPool sync.Pool // of *errResponder_

	maxPacket   int // max write payload
	readRetries int // empty DATA responses tolerated per read

	ext       map[string]string // extensions as advertised (name -> data)
	extParsed map[string]any    // structured decodings, keyed by name
	features  map[Feature]bool

	ready     atomic.Bool
	readyOnce sync.Once
	readyDone chan struct{}
	readyErr  error

	onReady func(error)
	onError func(error)
	onClose func(error)
}

// NewDetached creates a Client that is not yet bound to a channel.
func NewDetached(opts ...ClientOption) (c *Client, err error) {
	c = &Client{
		maxPacket:   maxWriteBlockLength,
		readRetries: 4,
		readyDone:   make(chan struct{}),
	}
	c.conn.construct()
	c.respPool.New = c.newResponder
	for _, opt := range opts {
		if err = opt(c); err != nil {
			return nil, err
		}
	}
	return
}

// NewClientPipe creates a Client talking over a byte stream, such as the
// stdin/stdout of an SSH session's sftp subsystem, and waits for the
// handshake to complete.
func NewClientPipe(
	rd io.Reader,
	wr io.WriteCloser,
	opts ...ClientOption,
) (
	client *Client,
	err error,
) {
	client, err = NewDetached(opts...)
	if err != nil {
		wr.Close()
		return nil, err
	}
	ch := NewStreamChannel(rd, wr)
	err = client.Bind(ch)
	if err != nil {
		wr.Close()
		return nil, err
	}
	ch.Start()
	err = client.AwaitReady()
	if err != nil {
		return nil, err
	}
	return
}

// Bind attaches the channel, subscribes to its notifications, and sends the
// INIT packet.  It returns without waiting for the server's VERSION; use
// AwaitReady or the OnReady option to learn the outcome.  A client binds
// exactly once.
func (c *Client) Bind(ch Channel, opts ...ClientOption) (err error) {
	for _, opt := range opts {
		if err = opt(c); err != nil {
			return
		}
	}
	err = c.conn.bind(ch)
	if err != nil {
		return
	}
	ch.OnMessage(c.handleMessage)
	ch.OnClose(c.handleChannelClosed)

	err = c.conn.parkAt(1, &pending_{
		expectType: sshFxpVersion,
		cmd:        CommandInfo{Command: "init"},
		onReply:    c.handleVersion,
		onError:    c.handshakeDone,
	})
	if err != nil {
		return
	}

	w := newPacketWriter(0, c.writeLimit())
	frame := w.finish(sshFxpInit, sftpProtocolVersion)
	err = ch.Send(frame)
	if err != nil {
		c.fail(uerr.Chainf(err, "send INIT"))
		return
	}
	c.conn.bytesSent.Add(uint64(len(frame)))
	return
}

// Connect is Bind plus AwaitReady.
func Connect(ch Channel, opts ...ClientOption) (c *Client, err error) {
	c, err = NewDetached(opts...)
	if err != nil {
		return nil, err
	}
	err = c.Bind(ch)
	if err != nil {
		return nil, err
	}
	err = c.AwaitReady()
	if err != nil {
		return nil, err
	}
	return
}

// AwaitReady blocks until the version handshake completes (or fails).
func (c *Client) AwaitReady() error {
	<-c.readyDone
	return c.readyErr
}

// Ready tells whether the handshake has completed successfully.
func (c *Client) Ready() bool { return c.ready.Load() }

// HasExtension checks whether the server advertised a named extension.
// The first return value is the extension data reported by the server
// (typically a version number).
func (c *Client) HasExtension(name string) (string, bool) {
	data, ok := c.ext[name]
	return data, ok
}

// Extension returns the structured decoding of an advertised extension
// (*VendorID, *SupportedInfo, *FsAttribs, string, or raw []byte).
func (c *Client) Extension(name string) (parsed any, ok bool) {
	parsed, ok = c.extParsed[name]
	return
}

// HasFeature tells whether a capability derived from the advertised
// extensions is available.
func (c *Client) HasFeature(f Feature) bool { return c.features[f] }

// BytesSent returns the count of bytes handed to the channel.
func (c *Client) BytesSent() uint64 { return c.conn.bytesSent.Load() }

// BytesReceived returns the count of frame bytes dispatched.
func (c *Client) BytesReceived() uint64 { return c.conn.bytesRecv.Load() }

// Close tears the session down.  Every outstanding request completes with
// a connection lost error, and the channel is closed.
func (c *Client) Close() error {
	pending, ch, wasEnded := c.conn.end()
	if wasEnded {
		return nil
	}
	for _, p := range pending {
		p.onError(connLostError(p.cmd))
	}
	if nil != ch {
		ch.Close()
	}
	if nil != c.onClose {
		c.onClose(nil)
	}
	return nil
}

//
// channel notifications
//

func (c *Client) handleMessage(frame []byte) {
	defer func() {
		if it := recover(); it != nil {
			c.fail(uerr.Chainf(fmt.Errorf("%v", it), "sftp dispatch panic"))
		}
	}()
	if fatal := c.conn.dispatch(frame); fatal != nil {
		c.fail(fatal)
	}
}

func (c *Client) handleChannelClosed(err error) {
	pending, _, wasEnded := c.conn.end()
	if wasEnded {
		return
	}
	for _, p := range pending {
		p.onError(connLostError(p.cmd))
	}
	if nil != c.onClose {
		c.onClose(err)
	} else if nil != err {
		c.reportError(err)
	}
}

// fail ends the session after a fault: protocol violation, send failure,
// or dispatch panic
func (c *Client) fail(cause error) {
	pending, ch, wasEnded := c.conn.end()
	if wasEnded {
		return
	}
	if nil != ch {
		ch.Close()
	}
	for _, p := range pending {
		p.onError(connLostError(p.cmd))
	}
	c.reportError(cause)
	if nil != c.onClose {
		c.onClose(nil)
	}
}

func (c *Client) reportError(err error) {
	if nil != c.onError {
		c.onError(err)
	} else {
		ulog.Errorf("sftp: %s", err)
	}
}

//
// handshake
//

func (c *Client) handshakeDone(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		if nil == err {
			c.ready.Store(true)
		}
		close(c.readyDone)
		if nil != c.onReady {
			c.onReady(err)
		}
	})
}

func (c *Client) handleVersion(r *packetReader, typ uint8) (fatal error) {
	cmd := CommandInfo{Command: "init"}
	if sshFxpVersion != typ {
		err := &unexpectedPacketErr{sshFxpVersion, typ}
		c.handshakeDone(badMessageError(err.Error(), cmd))
		return uerr.ChainfCode(err, errCodeHandshake, "handshake")
	}
	version, err := r.readUint32()
	if err != nil {
		c.handshakeDone(badMessageError(err.Error(), cmd))
		return uerr.ChainfCode(err, errCodeHandshake, "handshake")
	}
	if sftpProtocolVersion != version {
		verr := &unexpectedVersionErr{sftpProtocolVersion, version}
		c.handshakeDone(badMessageError(verr.Error(), cmd))
		return uerr.ChainfCode(verr, errCodeHandshake, "handshake")
	}

	exts := make(map[string]string)
	parsed := make(map[string]any)
	for 0 != r.remaining() {
		var name, data string
		if name, err = r.readString(); err != nil {
			break
		}
		if data, err = r.readString(); err != nil {
			break
		}
		// openssh servers may advertise several versions of the same
		// extension; collect them as a comma separated list
		if prev, have := exts[name]; have &&
			strings.HasSuffix(name, "@openssh.com") {
			exts[name] = prev + "," + data
		} else {
			exts[name] = data
		}
		p, perr := decodeExtension(name, data)
		if nil == perr {
			parsed[name] = p
		} else if ulog.DebugEnabled {
			ulog.Debugf("sftp: undecodable extension %s: %s", name, perr)
		}
	}
	if err != nil {
		c.handshakeDone(badMessageError(err.Error(), cmd))
		return uerr.ChainfCode(err, errCodeHandshake, "handshake extensions")
	}

	c.ext = exts
	c.extParsed = parsed
	c.features = deriveFeatures(exts)
	c.handshakeDone(nil)
	return nil
}

//
// request plumbing
//

type errResponder_ struct {
	c      chan error
	client *Client
}

func (r *errResponder_) onError(err error) { r.c <- err }

func (r *errResponder_) await() (err error) {
	err = <-r.c
	r.client.respPool.Put(r)
	return
}

func (c *Client) newResponder() any {
	return &errResponder_{
		c:      make(chan error, 1),
		client: c,
	}
}

func (c *Client) responder() *errResponder_ {
	return c.respPool.Get().(*errResponder_)
}

func (c *Client) writeLimit() int { return c.maxPacket + packetHeadroom }

// send builds the packet and parks the continuation.  Every outcome -
// response, status, no connection, teardown - reaches onError (through
// onReply for responses), so callers always complete asynchronously and
// exactly once.
func (c *Client) send(
	typ uint8,
	hint int,
	cmd CommandInfo,
	expectType uint8,
	build func(w *packetWriter),
	onReply func(r *packetReader, typ uint8) error,
	onError func(err error),
) {
	w := newPacketWriter(hint, c.writeLimit())
	build(w)
	fatal := c.conn.submit(typ, w, &pending_{
		expectType: expectType,
		cmd:        cmd,
		onReply:    onReply,
		onError:    onError,
	})
	if fatal != nil {
		c.fail(fatal)
	}
}

// invoke expecting either expectType or a status response
func (c *Client) invokeExpect(
	typ uint8,
	hint int,
	cmd CommandInfo,
	expectType uint8,
	build func(w *packetWriter),
	onExpect func(r *packetReader) error,
) (err error) {
	responder := c.responder()
	c.send(typ, hint, cmd, expectType, build,
		func(r *packetReader, rtyp uint8) (fatal error) {
			switch rtyp {
			case expectType:
				perr := onExpect(r)
				if nil == perr {
					responder.onError(nil)
					return nil
				}
				responder.onError(badMessageError(perr.Error(), cmd))
				return uerr.Chainf(perr, "parse %s response", cmd.Command)
			case sshFxpStatus:
				responder.onError(maybeStatus(r, cmd))
				return nil
			default:
				upe := &unexpectedPacketErr{expectType, rtyp}
				responder.onError(badMessageError(upe.Error(), cmd))
				return upe
			}
		},
		responder.onError)
	return responder.await()
}

// invoke when the expected response is just a status
func (c *Client) invokeExpectStatus(
	typ uint8,
	hint int,
	cmd CommandInfo,
	build func(w *packetWriter),
) (err error) {
	responder := c.responder()
	c.send(typ, hint, cmd, sshFxpStatus, build,
		func(r *packetReader, rtyp uint8) (fatal error) {
			if sshFxpStatus != rtyp {
				upe := &unexpectedPacketErr{sshFxpStatus, rtyp}
				responder.onError(badMessageError(upe.Error(), cmd))
				return upe
			}
			responder.onError(maybeStatus(r, cmd))
			return nil
		},
		responder.onError)
	return responder.await()
}

// failOp completes an operation that cannot go to the wire, through the
// same asynchronous path responses take.
func (c *Client) failOp(err error) error {
	responder := c.responder()
	responder.onError(err)
	return responder.await()
}

// a leading tilde is the user's business, not the server's; the server
// resolves the home directory through the relative form
func normPath(pathN string) string {
	if strings.HasPrefix(pathN, "~") {
		if "~" == pathN {
			return "."
		}
		if strings.HasPrefix(pathN, "~/") {
			return "." + pathN[1:]
		}
	}
	return pathN
}

func (c *Client) checkHandle(f *File) error {
	if nil == f || 0 == len(f.handle) || f.client != c {
		return ErrInvalidHandle
	}
	return nil
}

//
// operations
//

// Open opens the file at pathN using os.OpenFile style flags.
func (c *Client) Open(pathN string, flags int) (*File, error) {
	return c.open(pathN, toPflags(flags), 0, nil)
}

// OpenMode opens the file at pathN using a symbolic mode ("r", "w+", ...).
func (c *Client) OpenMode(pathN string, mode string) (*File, error) {
	pflags, err := ModeToFlags(mode)
	if err != nil {
		return nil, err
	}
	return c.open(pathN, pflags, 0, nil)
}

// OpenRead opens the file at pathN for reading.
func (c *Client) OpenRead(pathN string) (*File, error) {
	return c.open(pathN, sshFxfRead, 0, nil)
}

// Create creates (or truncates) the file at pathN for read/write.
func (c *Client) Create(pathN string) (*File, error) {
	return c.open(pathN,
		sshFxfRead|sshFxfWrite|sshFxfCreat|sshFxfTrunc, 0, nil)
}

// OpenAttrs opens pathN with explicit open flag bits and initial
// attributes.  attrFlags selects which attrs fields accompany the request.
func (c *Client) OpenAttrs(
	pathN string,
	pflags uint32,
	attrFlags uint32,
	attrs *FileStat,
) (*File, error) {
	return c.open(pathN, MaskFlags(pflags), attrFlags, attrs)
}

func (c *Client) open(
	pathN string,
	pflags, attrFlags uint32,
	attrs *FileStat,
) (
	rv *File,
	err error,
) {
	pathN = normPath(pathN)
	if nil == attrs {
		attrs = &FileStat{}
	}
	f := &File{client: c, pathN: pathN}
	cmd := CommandInfo{Command: "open", Path: pathN}
	err = c.invokeExpect(sshFxpOpen, 64+len(pathN), cmd, sshFxpHandle,
		func(w *packetWriter) {
			w.writeString(pathN)
			w.writeUint32(pflags)
			encodeAttrs(w, attrFlags, attrs)
		},
		func(r *packetReader) (err error) {
			f.handle, err = r.readString()
			return
		})
	if err != nil {
		return nil, uerr.Chainf(err, "open %s", pathN)
	}
	return f, nil
}

func (c *Client) closeHandle(handle string, cmd CommandInfo) error {
	return c.invokeExpectStatus(sshFxpClose, 16+len(handle), cmd,
		func(w *packetWriter) {
			w.writeString(handle)
		})
}

// readAt issues a single READ.  The request length is clamped to the
// largest block the protocol allows.  Empty DATA responses are retried a
// bounded number of times - some servers answer an immediate read with no
// data yet - before giving up.
func (c *Client) readAt(f *File, b []byte, off int64) (nread int, err error) {
	if err = c.checkHandle(f); err != nil {
		return
	}
	if 0 == len(b) {
		return
	}
	if len(b) > maxReadBlockLength {
		b = b[:maxReadBlockLength]
	}
	cmd := CommandInfo{Command: "read", Path: f.pathN, Handle: f.handle}
	responder := c.responder()
	retries := 0

	var attempt func()
	onReply := func(r *packetReader, rtyp uint8) (fatal error) {
		switch rtyp {
		case sshFxpData:
			data, derr := r.readBytes()
			if derr != nil {
				responder.onError(badMessageError(derr.Error(), cmd))
				return uerr.Chainf(derr, "parse read response")
			}
			if 0 == len(data) {
				retries++
				if retries > c.readRetries {
					responder.onError(newEioError(cmd))
					return nil
				}
				attempt()
				return nil
			}
			if len(data) > len(b) {
				err := fmt.Errorf("read of %d returned %d bytes",
					len(b), len(data))
				responder.onError(badMessageError(err.Error(), cmd))
				return err
			}
			nread = copy(b, data)
			responder.onError(nil)
		case sshFxpStatus:
			responder.onError(maybeStatus(r, cmd))
		default:
			upe := &unexpectedPacketErr{sshFxpData, rtyp}
			responder.onError(badMessageError(upe.Error(), cmd))
			return upe
		}
		return nil
	}
	attempt = func() {
		c.send(sshFxpRead, 32+len(f.handle), cmd, sshFxpData,
			func(w *packetWriter) {
				w.writeString(f.handle)
				w.writeInt64(off)
				w.writeUint32(uint32(len(b)))
			},
			onReply, responder.onError)
	}

	attempt()
	err = responder.await()
	return
}

// writeAt issues a single WRITE of at most the negotiated payload size.
func (c *Client) writeAt(f *File, b []byte, off int64) (err error) {
	if err = c.checkHandle(f); err != nil {
		return
	}
	if len(b) > c.maxPacket {
		return ErrWriteTooLarge
	}
	cmd := CommandInfo{Command: "write", Path: f.pathN, Handle: f.handle}
	return c.invokeExpectStatus(sshFxpWrite, 32+len(f.handle)+len(b), cmd,
		func(w *packetWriter) {
			w.writeString(f.handle)
			w.writeInt64(off)
			w.writeBytes(b)
		})
}

// Stat returns a FileStat describing the file at pathN, following
// symbolic links.
func (c *Client) Stat(pathN string) (*FileStat, error) {
	pathN = normPath(pathN)
	return c.statPath(sshFxpStat, "stat", pathN)
}

// Lstat is Stat without following symbolic links.
func (c *Client) Lstat(pathN string) (*FileStat, error) {
	pathN = normPath(pathN)
	return c.statPath(sshFxpLstat, "lstat", pathN)
}

func (c *Client) statPath(typ uint8, op, pathN string) (fs *FileStat, err error) {
	cmd := CommandInfo{Command: op, Path: pathN}
	err = c.invokeExpect(typ, 16+len(pathN), cmd, sshFxpAttrs,
		func(w *packetWriter) {
			w.writeString(pathN)
		},
		func(r *packetReader) (err error) {
			fs, _, err = decodeAttrs(r)
			return
		})
	return
}

func (c *Client) fstat(f *File) (fs *FileStat, err error) {
	if err = c.checkHandle(f); err != nil {
		return
	}
	cmd := CommandInfo{Command: "fstat", Path: f.pathN, Handle: f.handle}
	err = c.invokeExpect(sshFxpFstat, 16+len(f.handle), cmd, sshFxpAttrs,
		func(w *packetWriter) {
			w.writeString(f.handle)
		},
		func(r *packetReader) (err error) {
			fs, _, err = decodeAttrs(r)
			return
		})
	return
}

func (c *Client) setstat(pathN string, flags uint32, attrs *FileStat) error {
	cmd := CommandInfo{Command: "setstat", Path: pathN}
	return c.invokeExpectStatus(sshFxpSetstat, 64+len(pathN), cmd,
		func(w *packetWriter) {
			w.writeString(pathN)
			encodeAttrs(w, flags, attrs)
		})
}

func (c *Client) fsetstat(f *File, flags uint32, attrs *FileStat) (err error) {
	if err = c.checkHandle(f); err != nil {
		return
	}
	cmd := CommandInfo{Command: "fsetstat", Path: f.pathN, Handle: f.handle}
	return c.invokeExpectStatus(sshFxpFsetstat, 64+len(f.handle), cmd,
		func(w *packetWriter) {
			w.writeString(f.handle)
			encodeAttrs(w, flags, attrs)
		})
}

// Chtimes changes the access and modification times of the named file.
func (c *Client) Chtimes(pathN string, atime, mtime uint32) error {
	return c.setstat(normPath(pathN), sshFileXferAttrACmodTime,
		&FileStat{Atime: atime, Mtime: mtime})
}

// Chown changes the user and group owners of the named file.
func (c *Client) Chown(pathN string, uid, gid int) error {
	return c.setstat(normPath(pathN), sshFileXferAttrUIDGID,
		&FileStat{UID: uint32(uid), GID: uint32(gid)})
}

// Chmod changes the permissions of the named file.
func (c *Client) Chmod(pathN string, mode FileMode) error {
	return c.setstat(normPath(pathN), sshFileXferAttrPermissions,
		&FileStat{Mode: uint32(mode)})
}

// Truncate sets the size of the named file.
func (c *Client) Truncate(pathN string, size int64) error {
	return c.setstat(normPath(pathN), sshFileXferAttrSize,
		&FileStat{Size: uint64(size)})
}

// SetMetadata attaches extended metadata to the named file.
func (c *Client) SetMetadata(pathN string, m Metadata) error {
	return c.setstat(normPath(pathN), sshFileXferAttrExtended,
		&FileStat{Metadata: m})
}

// ReadDir lists the directory at dirN.  The returned Files are not open,
// but carry the attributes the server reported.
func (c *Client) ReadDir(dirN string) (entries []*File, err error) {
	dirN = normPath(dirN)
	handle, err := c.opendir(dirN)
	if err != nil {
		return
	}
	defer c.closeHandle(handle,
		CommandInfo{Command: "close", Path: dirN, Handle: handle})

	cmd := CommandInfo{Command: "readdir", Path: dirN, Handle: handle}
	for {
		err = c.invokeExpect(sshFxpReaddir, 16+len(handle), cmd, sshFxpName,
			func(w *packetWriter) {
				w.writeString(handle)
			},
			func(r *packetReader) (err error) {
				count, err := r.readUint32()
				if err != nil {
					return
				}
				for i := uint32(0); i < count; i++ {
					var fileN string
					if fileN, err = r.readString(); err != nil {
						return
					}
					if _, err = r.readString(); err != nil { // longname
						return
					}
					var attrs *FileStat
					if attrs, _, err = decodeAttrs(r); err != nil {
						return
					}
					if "." == fileN || ".." == fileN {
						continue
					}
					entries = append(entries, &File{
						client: c,
						pathN:  path.Join(dirN, fileN),
						attrs:  *attrs,
					})
				}
				return
			})
		if err != nil {
			if io.EOF == err { // end of the enumeration
				err = nil
			}
			return
		}
	}
}

func (c *Client) opendir(dirN string) (handle string, err error) {
	cmd := CommandInfo{Command: "opendir", Path: dirN}
	err = c.invokeExpect(sshFxpOpendir, 16+len(dirN), cmd, sshFxpHandle,
		func(w *packetWriter) {
			w.writeString(dirN)
		},
		func(r *packetReader) (err error) {
			handle, err = r.readString()
			return
		})
	return
}

// Remove removes the named file.
func (c *Client) Remove(pathN string) error {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "remove", Path: pathN}
	return c.invokeExpectStatus(sshFxpRemove, 16+len(pathN), cmd,
		func(w *packetWriter) {
			w.writeString(pathN)
		})
}

// Mkdir creates the named directory.
func (c *Client) Mkdir(pathN string) error {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "mkdir", Path: pathN}
	return c.invokeExpectStatus(sshFxpMkdir, 64+len(pathN), cmd,
		func(w *packetWriter) {
			w.writeString(pathN)
			encodeAttrs(w, 0, &FileStat{})
		})
}

// RemoveDirectory removes the named directory.
func (c *Client) RemoveDirectory(pathN string) error {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "rmdir", Path: pathN}
	return c.invokeExpectStatus(sshFxpRmdir, 16+len(pathN), cmd,
		func(w *packetWriter) {
			w.writeString(pathN)
		})
}

// RealPath asks the server to canonicalize pathN to an absolute path.
func (c *Client) RealPath(pathN string) (canonN string, err error) {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "realpath", Path: pathN}
	err = c.invokeExpect(sshFxpRealpath, 16+len(pathN), cmd, sshFxpName,
		func(w *packetWriter) {
			w.writeString(pathN)
		},
		func(r *packetReader) (err error) {
			count, err := r.readUint32()
			if err != nil {
				return
			}
			if 1 != count {
				return unexpectedCount(1, count)
			}
			canonN, err = r.readString() // attributes ignored
			return
		})
	return
}

// Getwd returns the current working directory of the server.
func (c *Client) Getwd() (string, error) {
	return c.RealPath(".")
}

// ReadLink reads the target of a symbolic link.
func (c *Client) ReadLink(pathN string) (target string, err error) {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "readlink", Path: pathN}
	err = c.invokeExpect(sshFxpReadlink, 16+len(pathN), cmd, sshFxpName,
		func(w *packetWriter) {
			w.writeString(pathN)
		},
		func(r *packetReader) (err error) {
			count, err := r.readUint32()
			if err != nil {
				return
			}
			if 1 != count {
				return unexpectedCount(1, count)
			}
			target, err = r.readString() // attributes ignored
			return
		})
	return
}

// Symlink creates a symbolic link at linkN pointing at targetN.
func (c *Client) Symlink(targetN, linkN string) error {
	targetN, linkN = normPath(targetN), normPath(linkN)
	cmd := CommandInfo{Command: "symlink", FromPath: targetN, ToPath: linkN}

	// The order of the arguments to SSH_FXP_SYMLINK was inadvertently
	// reversed and the reversal was not noticed until the server was
	// widely deployed.  Covered in Section 4.1 of
	// https://github.com/openssh/openssh-portable/blob/master/PROTOCOL
	return c.invokeExpectStatus(sshFxpSymlink,
		24+len(targetN)+len(linkN), cmd,
		func(w *packetWriter) {
			w.writeString(targetN)
			w.writeString(linkN)
		})
}

// Rename renames oldN to newN.  With no flags the plain RENAME is issued,
// which fails if newN exists.  RenameOverwrite uses the
// posix-rename@openssh.com extension and requires the server to support
// it.  Any other flag is unsupported.
func (c *Client) Rename(oldN, newN string, flags uint32) error {
	oldN, newN = normPath(oldN), normPath(newN)
	cmd := CommandInfo{Command: "rename", FromPath: oldN, ToPath: newN}
	switch flags {
	case 0:
		return c.invokeExpectStatus(sshFxpRename,
			24+len(oldN)+len(newN), cmd,
			func(w *packetWriter) {
				w.writeString(oldN)
				w.writeString(newN)
			})
	case RenameOverwrite:
		if !c.features[FeaturePosixRename] {
			return c.failOp(opUnsupportedError(cmd))
		}
		return c.invokeExpectStatus(sshFxpExtended,
			48+len(oldN)+len(newN), cmd,
			func(w *packetWriter) {
				w.writeString(extPosixRename)
				w.writeString(oldN)
				w.writeString(newN)
			})
	default:
		return c.failOp(opUnsupportedError(cmd))
	}
}

// Link creates a hard link at newN pointing at the same inode as oldN,
// via the hardlink@openssh.com extension.
func (c *Client) Link(oldN, newN string) error {
	oldN, newN = normPath(oldN), normPath(newN)
	cmd := CommandInfo{Command: "link", FromPath: oldN, ToPath: newN}
	if !c.features[FeatureHardlink] {
		return c.failOp(opUnsupportedError(cmd))
	}
	return c.invokeExpectStatus(sshFxpExtended,
		48+len(oldN)+len(newN), cmd,
		func(w *packetWriter) {
			w.writeString(extHardlink)
			w.writeString(oldN)
			w.writeString(newN)
		})
}

// CopyData copies length bytes from src at srcOff to dst at dstOff on the
// server, via the copy-data extension.  Both files must be open on this
// client.
func (c *Client) CopyData(
	src *File, srcOff, length int64,
	dst *File, dstOff int64,
) (err error) {
	if err = c.checkHandle(src); err != nil {
		return
	}
	if err = c.checkHandle(dst); err != nil {
		return
	}
	cmd := CommandInfo{
		Command:  "copy-data",
		FromPath: src.pathN,
		ToPath:   dst.pathN,
		Handle:   src.handle,
	}
	if !c.features[FeatureCopyData] {
		return c.failOp(opUnsupportedError(cmd))
	}
	return c.invokeExpectStatus(sshFxpExtended,
		64+len(src.handle)+len(dst.handle), cmd,
		func(w *packetWriter) {
			w.writeString(extCopyData)
			w.writeString(src.handle)
			w.writeInt64(srcOff)
			w.writeInt64(length)
			w.writeString(dst.handle)
			w.writeInt64(dstOff)
		})
}

// FileHash is the server's answer to a CheckFileHandle request.
type FileHash struct {
	Algorithm string
	Hashes    []byte // concatenated per-block digests
}

// CheckFileHandle asks the server to hash a byte range of an open file via
// the check-file-handle extension.  algorithms is a comma separated
// preference list (e.g. "sha1,md5"); blockSize zero hashes the whole range
// as one block.
func (c *Client) CheckFileHandle(
	f *File,
	algorithms string,
	offset, length int64,
	blockSize uint32,
) (
	hash *FileHash,
	err error,
) {
	if err = c.checkHandle(f); err != nil {
		return
	}
	cmd := CommandInfo{
		Command: "check-file-handle",
		Path:    f.pathN,
		Handle:  f.handle,
	}
	if !c.features[FeatureCheckFileHandle] {
		return nil, c.failOp(opUnsupportedError(cmd))
	}
	err = c.invokeExpect(sshFxpExtended,
		64+len(f.handle)+len(algorithms), cmd, sshFxpExtendedReply,
		func(w *packetWriter) {
			w.writeString(extCheckFileHandle)
			w.writeString(f.handle)
			w.writeString(algorithms)
			w.writeInt64(offset)
			w.writeInt64(length)
			w.writeUint32(blockSize)
		},
		func(r *packetReader) (err error) {
			hash = &FileHash{}
			if hash.Algorithm, err = r.readString(); err != nil {
				return
			}
			hash.Hashes, err = r.readData(true)
			return
		})
	if err != nil {
		hash = nil
	}
	return
}
