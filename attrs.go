package wsftp

// ssh_FXP_ATTRS support
// see https://filezilla-project.org/specs/draft-ietf-secsh-filexfer-02.txt#section-5

import (
	"os"
	"time"
)

const (
	sshFileXferAttrSize        = 0x00000001
	sshFileXferAttrUIDGID      = 0x00000002
	sshFileXferAttrPermissions = 0x00000004
	sshFileXferAttrACmodTime   = 0x00000008
	sshFileXferAttrExtended    = 0x80000000

	sshFileXferAttrBasic = sshFileXferAttrSize | sshFileXferAttrUIDGID |
		sshFileXferAttrPermissions | sshFileXferAttrACmodTime
)

// FileStat holds the unmarshalled values from a call to READDIR or *STAT.
// Which fields were actually present on the wire is tracked by the flags
// word at the codec layer; callers see only the values.
//
// Nlink and Metadata travel in the extended metadata sub-block when the
// server supplies one - the v3 attribute layout itself has no place for
// them.
type FileStat struct {
	Size     uint64
	Mode     uint32
	Mtime    uint32
	Atime    uint32
	UID      uint32
	GID      uint32
	Nlink    uint32
	Metadata Metadata
}

// returns the FileMode, containing type and permission bits
func (fs *FileStat) FileMode() FileMode { return FileMode(fs.Mode) }

// returns the Type bits of the FileMode
func (fs *FileStat) FileType() FileMode { return FileMode(fs.Mode) & ModeType }

// returns true if the mode describes a regular file.
func (fs *FileStat) IsRegular() bool {
	return FileMode(fs.Mode)&ModeType == ModeRegular
}

// returns true if the mode describes a directory
func (fs *FileStat) IsDir() bool {
	return FileMode(fs.Mode)&ModeType == ModeDir
}

// ModTime returns the Mtime SFTP file attribute converted to a time.Time
func (fs *FileStat) ModTime() time.Time { return time.Unix(int64(fs.Mtime), 0) }

// AccessTime returns the Atime SFTP file attribute converted to a time.Time
func (fs *FileStat) AccessTime() time.Time { return time.Unix(int64(fs.Atime), 0) }

// returns the Mode SFTP file attribute converted to an os.FileMode
func (fs *FileStat) OsFileMode() os.FileMode { return toFileMode(fs.Mode) }

// convert the FileStat and a filename to a go os.FileInfo
func (fs *FileStat) AsFileInfo(name string) os.FileInfo {
	return &fileInfo{name: name, stat: fs}
}

// fileInfo is an artificial type designed to satisfy os.FileInfo.
type fileInfo struct {
	name string
	stat *FileStat
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.stat.Size) }
func (fi *fileInfo) Mode() os.FileMode  { return fi.stat.OsFileMode() }
func (fi *fileInfo) ModTime() time.Time { return fi.stat.ModTime() }
func (fi *fileInfo) IsDir() bool        { return fi.Mode().IsDir() }
func (fi *fileInfo) Sys() interface{}   { return fi.stat }

// encodeAttrs writes the flags word and then each field the flags claim,
// in wire order.  A set extended bit emits the metadata sub-block as the
// single extended pair, or a zero pair count when there is no metadata.
func encodeAttrs(w *packetWriter, flags uint32, fs *FileStat) {
	w.writeUint32(flags)
	if flags&sshFileXferAttrSize != 0 {
		w.writeUint64(fs.Size)
	}
	if flags&sshFileXferAttrUIDGID != 0 {
		w.writeUint32(fs.UID)
		w.writeUint32(fs.GID)
	}
	if flags&sshFileXferAttrPermissions != 0 {
		w.writeUint32(fs.Mode)
	}
	if flags&sshFileXferAttrACmodTime != 0 {
		w.writeUint32(fs.Atime)
		w.writeUint32(fs.Mtime)
	}
	if flags&sshFileXferAttrExtended != 0 {
		if 0 == len(fs.Metadata) {
			w.writeUint32(0)
			return
		}
		w.writeUint32(1)
		w.writeString(extMetadata)
		w.writeBytes(encodeMetadata(fs.Metadata))
	}
}

// decodeAttrs reads the flags word and each field it claims.  The extended
// bit is consumed here: the metadata pair (if present) is parsed, other
// pairs are skipped, and the bit is cleared from the returned flags so that
// callers observe only the basic mask.
func decodeAttrs(r *packetReader) (fs *FileStat, flags uint32, err error) {
	flags, err = r.readUint32()
	if err != nil {
		return
	}
	fs = &FileStat{}
	if flags&sshFileXferAttrSize != 0 {
		if fs.Size, err = r.readUint64(); err != nil {
			return
		}
	}
	if flags&sshFileXferAttrUIDGID != 0 {
		if fs.UID, err = r.readUint32(); err != nil {
			return
		}
		if fs.GID, err = r.readUint32(); err != nil {
			return
		}
	}
	if flags&sshFileXferAttrPermissions != 0 {
		if fs.Mode, err = r.readUint32(); err != nil {
			return
		}
	}
	if flags&sshFileXferAttrACmodTime != 0 {
		if fs.Atime, err = r.readUint32(); err != nil {
			return
		}
		if fs.Mtime, err = r.readUint32(); err != nil {
			return
		}
	}
	if flags&sshFileXferAttrExtended != 0 {
		flags &^= sshFileXferAttrExtended
		var count int32
		if count, err = r.readInt32(); err != nil {
			return
		}
		for i := int32(0); i < count; i++ {
			var name string
			if name, err = r.readString(); err != nil {
				return
			}
			if name != extMetadata {
				if _, err = r.readBytes(); err != nil {
					return
				}
				continue
			}
			var inner *packetReader
			if inner, err = r.readStructuredData(); err != nil {
				return
			}
			if fs.Metadata, err = decodeMetadata(inner); err != nil {
				return
			}
			if n, found := fs.Metadata.Int("nlink"); found {
				fs.Nlink = uint32(n)
			}
		}
	}
	return
}

// FileMode is the mode word the v3 attribute block carries: POSIX
// permission bits, setuid/setgid/sticky, and an S_IFMT type nibble.  The
// values are fixed by the protocol regardless of the local OS.
type FileMode uint32

const (
	ModePerm FileMode = 0o0777 // S_IRWXU | S_IRWXG | S_IRWXO

	ModeSetUID FileMode = 0o4000 // S_ISUID
	ModeSetGID FileMode = 0o2000 // S_ISGID
	ModeSticky FileMode = 0o1000 // S_ISVTX

	ModeType       FileMode = 0xF000 // S_IFMT
	ModeNamedPipe  FileMode = 0x1000 // S_IFIFO
	ModeCharDevice FileMode = 0x2000 // S_IFCHR
	ModeDir        FileMode = 0x4000 // S_IFDIR
	ModeDevice     FileMode = 0x6000 // S_IFBLK
	ModeRegular    FileMode = 0x8000 // S_IFREG
	ModeSymlink    FileMode = 0xA000 // S_IFLNK
	ModeSocket     FileMode = 0xC000 // S_IFSOCK
)

// IsDir reports whether m describes a directory.
func (m FileMode) IsDir() bool { return (m & ModeType) == ModeDir }

// IsRegular reports whether m describes a regular file.
func (m FileMode) IsRegular() bool { return (m & ModeType) == ModeRegular }

// Perm returns only the permission bits of m.
func (m FileMode) Perm() FileMode { return (m & ModePerm) }

// Type returns only the type nibble of m.
func (m FileMode) Type() FileMode { return (m & ModeType) }

// the wire type nibble against its os.FileMode spelling; entries match on
// the exact type bit set, so block devices and character devices (which
// share os.ModeDevice) cannot shadow each other
var modeTypes_ = []struct {
	wire FileMode
	os   os.FileMode
}{
	{ModeNamedPipe, os.ModeNamedPipe},
	{ModeCharDevice, os.ModeDevice | os.ModeCharDevice},
	{ModeDir, os.ModeDir},
	{ModeDevice, os.ModeDevice},
	{ModeRegular, 0},
	{ModeSymlink, os.ModeSymlink},
	{ModeSocket, os.ModeSocket},
}

var modeSpecials_ = []struct {
	wire FileMode
	os   os.FileMode
}{
	{ModeSetUID, os.ModeSetuid},
	{ModeSetGID, os.ModeSetgid},
	{ModeSticky, os.ModeSticky},
}

// toFileMode converts a wire mode word to an os.FileMode
func toFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(FileMode(mode) & ModePerm)
	typ := FileMode(mode) & ModeType
	for _, mt := range modeTypes_ {
		if typ == mt.wire {
			fm |= mt.os
			break
		}
	}
	for _, ms := range modeSpecials_ {
		if FileMode(mode)&ms.wire != 0 {
			fm |= ms.os
		}
	}
	return fm
}

// fromFileMode converts an os.FileMode to a wire mode word.  Go mode types
// with no S_IFMT equivalent (irregular files) yield an empty type nibble.
func fromFileMode(mode os.FileMode) uint32 {
	bits := FileMode(mode & os.ModePerm)
	typ := mode & os.ModeType
	for _, mt := range modeTypes_ {
		if typ == mt.os {
			bits |= mt.wire
			break
		}
	}
	for _, ms := range modeSpecials_ {
		if mode&ms.os != 0 {
			bits |= ms.wire
		}
	}
	return uint32(bits)
}

const (
	s_ISUID = uint32(ModeSetUID)
	s_ISGID = uint32(ModeSetGID)
	s_ISVTX = uint32(ModeSticky)
)

// toChmodPerm extracts the bits a chmod request should carry: the
// permission bits plus setuid/setgid/sticky, accepted in either their
// POSIX positions or as Go's high os.FileMode bits.  Everything else is
// masked off.  No umask is applied - there is no portable, race-free way
// to read one, so masking is left to the caller.
func toChmodPerm(m os.FileMode) (perm uint32) {
	perm = uint32(m) & (uint32(ModePerm) | s_ISUID | s_ISGID | s_ISVTX)
	for _, ms := range modeSpecials_ {
		if m&ms.os != 0 {
			perm |= uint32(ms.wire)
		}
	}
	return
}
