package wsftp

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/tredeske/u/uerr"
)

const ErrOpened = uerr.Const("file already opened")

// File is an open remote file (or a directory entry from ReadDir, which is
// not open).  The handle inside is an opaque token issued by the server and
// is only meaningful to the session that opened it; every operation checks
// that the File belongs to the Client it is being used with.
//
// Calls that move the offset (Read/Write/Seek) need external coordination
// if used concurrently, as with any other kind of file.
type File struct {
	client *Client
	pathN  string
	handle string   // empty if not open
	offset int64    // current offset within remote file
	attrs  FileStat // if Mode bits not set, then not populated
}

func (f *File) IsOpen() bool { return 0 != len(f.handle) }

func (f *File) Client() *Client { return f.client }

// return the name of the file as presented to Open
func (f *File) Name() string { return f.pathN }

// return the base name of the file
func (f *File) BaseName() string { return path.Base(f.pathN) }

// return cached FileStat, which may not be populated with file attributes.
//
// if Mode bits are zero, then it is not populated.
//
// it will be populated after a ReadDir, or a Stat call
func (f *File) FileStat() FileStat { return f.attrs }

// return true if attributes are populated
func (f *File) AttrsCached() bool { return 0 != f.attrs.Mode }

// if attrs are populated, size of the file
func (f *File) Size() uint64 { return f.attrs.Size }

// if attrs are populated, mode bits of file.  otherwise, bits are zero.
func (f *File) Mode() FileMode { return f.attrs.FileMode() }

// careful - this creates a time.Time each invocation
func (f *File) ModTime() time.Time { return f.attrs.ModTime() }

// if attrs are populated, check if this is regular file
func (f *File) IsRegular() bool { return f.attrs.IsRegular() }

// if attrs are populated, check if this is a dir
func (f *File) IsDir() bool { return f.attrs.IsDir() }

// convert to a go os.FileInfo
func (f *File) OsFileInfo() os.FileInfo { return f.attrs.AsFileInfo(f.BaseName()) }

// Open the file (directory entries from ReadDir start out closed).
func (f *File) Open(flags int) (err error) {
	if f.IsOpen() {
		return ErrOpened
	}
	opened, err := f.client.open(f.pathN, toPflags(flags), 0, nil)
	if err != nil {
		return
	}
	f.handle = opened.handle
	return
}

// Close the file.  The handle becomes invalid immediately.
func (f *File) Close() error {
	if 0 == len(f.handle) {
		return nil
	}
	handle := f.handle
	f.handle = ""
	return f.client.closeHandle(handle,
		CommandInfo{Command: "close", Path: f.pathN, Handle: handle})
}

// Stat returns the attributes of the file.  If the file is open, fstat is
// used, otherwise stat.  The cached attributes are refreshed.
func (f *File) Stat() (attrs *FileStat, err error) {
	if 0 == len(f.handle) {
		attrs, err = f.client.Stat(f.pathN)
	} else {
		attrs, err = f.client.fstat(f)
	}
	if err != nil {
		return
	}
	f.attrs = *attrs
	return
}

// ReadAt reads up to len(b) bytes from the file at offset off.  A single
// request is issued, so a short read is normal when b exceeds the server's
// block limit.  io.EOF reports the end of the file.
func (f *File) ReadAt(b []byte, off int64) (int, error) {
	return f.client.readAt(f, b, off)
}

// Read implements io.Reader.
func (f *File) Read(b []byte) (nread int, err error) {
	if 0 == len(f.handle) {
		return 0, os.ErrClosed
	}
	nread, err = f.client.readAt(f, b, f.offset)
	f.offset += int64(nread)
	return
}

// WriteAt writes b at offset off, splitting into as many WRITE requests as
// the negotiated payload size requires.  Requests are issued sequentially.
func (f *File) WriteAt(b []byte, off int64) (nwrote int, err error) {
	if 0 == len(f.handle) {
		return 0, os.ErrClosed
	}
	max := f.client.maxPacket
	for 0 != len(b) {
		chunk := b
		if len(chunk) > max {
			chunk = chunk[:max]
		}
		err = f.client.writeAt(f, chunk, off)
		if err != nil {
			return
		}
		nwrote += len(chunk)
		off += int64(len(chunk))
		b = b[len(chunk):]
	}
	return
}

// Write implements io.Writer.
func (f *File) Write(b []byte) (nwrote int, err error) {
	if 0 == len(f.handle) {
		return 0, os.ErrClosed
	}
	nwrote, err = f.WriteAt(b, f.offset)
	f.offset += int64(nwrote)
	return
}

// Seek implements io.Seeker by setting the offset for the next Read or
// Write.  Seeking relative to the end uses the cached attributes, or stats
// the file when they are not populated.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if 0 == len(f.handle) {
		return 0, os.ErrClosed
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		if 0 == f.attrs.Mode {
			_, err := f.Stat()
			if err != nil {
				return f.offset, err
			}
		}
		offset += int64(f.attrs.Size)
	default:
		return f.offset, os.ErrInvalid
	}
	if offset < 0 {
		return f.offset, os.ErrInvalid
	}
	f.offset = offset
	return f.offset, nil
}

// Chmod changes the permissions of the file.
func (f *File) Chmod(mode os.FileMode) error {
	attrs := &FileStat{Mode: toChmodPerm(mode)}
	if 0 == len(f.handle) {
		return f.client.setstat(f.pathN, sshFileXferAttrPermissions, attrs)
	}
	return f.client.fsetstat(f, sshFileXferAttrPermissions, attrs)
}

// Chown changes the uid/gid of the file.
func (f *File) Chown(uid, gid int) error {
	attrs := &FileStat{UID: uint32(uid), GID: uint32(gid)}
	if 0 == len(f.handle) {
		return f.client.setstat(f.pathN, sshFileXferAttrUIDGID, attrs)
	}
	return f.client.fsetstat(f, sshFileXferAttrUIDGID, attrs)
}

// Truncate sets the size of the file.
func (f *File) Truncate(size int64) error {
	attrs := &FileStat{Size: uint64(size)}
	if 0 == len(f.handle) {
		return f.client.setstat(f.pathN, sshFileXferAttrSize, attrs)
	}
	return f.client.fsetstat(f, sshFileXferAttrSize, attrs)
}

// SetMetadata attaches extended metadata to the file.
func (f *File) SetMetadata(m Metadata) error {
	attrs := &FileStat{Metadata: m}
	if 0 == len(f.handle) {
		return f.client.setstat(f.pathN, sshFileXferAttrExtended, attrs)
	}
	return f.client.fsetstat(f, sshFileXferAttrExtended, attrs)
}

// Hash asks the server to hash a byte range of the open file.
func (f *File) Hash(
	algorithms string,
	offset, length int64,
	blockSize uint32,
) (*FileHash, error) {
	return f.client.CheckFileHandle(f, algorithms, offset, length, blockSize)
}
