package wsftp

// statvfs@openssh.com / fstatvfs@openssh.com / fsync@openssh.com support
// http://www.opensource.apple.com/source/OpenSSH/OpenSSH-175/openssh/PROTOCOL?txt

import "os"

// A StatVFS contains statistics about a filesystem.
type StatVFS struct {
	Bsize   uint64 // file system block size
	Frsize  uint64 // fundamental fs block size
	Blocks  uint64 // number of blocks (unit f_frsize)
	Bfree   uint64 // free blocks in file system
	Bavail  uint64 // free blocks for non-root
	Files   uint64 // total file inodes
	Ffree   uint64 // free file inodes
	Favail  uint64 // free file inodes for to non-root
	Fsid    uint64 // file system id
	Flag    uint64 // bit mask of f_flag values
	Namemax uint64 // maximum filename length
}

// TotalSpace calculates the amount of total space in a filesystem.
func (p *StatVFS) TotalSpace() uint64 { return p.Frsize * p.Blocks }

// FreeSpace calculates the amount of free space in a filesystem.
func (p *StatVFS) FreeSpace() uint64 { return p.Frsize * p.Bfree }

func decodeStatVFS(r *packetReader) (rv *StatVFS, err error) {
	rv = &StatVFS{}
	fields := []*uint64{
		&rv.Bsize, &rv.Frsize, &rv.Blocks, &rv.Bfree, &rv.Bavail,
		&rv.Files, &rv.Ffree, &rv.Favail, &rv.Fsid, &rv.Flag, &rv.Namemax,
	}
	for _, field := range fields {
		if *field, err = r.readUint64(); err != nil {
			return nil, err
		}
	}
	return
}

// StatVFS gets file system statistics for the filesystem holding pathN,
// via the statvfs@openssh.com extension.
func (c *Client) StatVFS(pathN string) (rv *StatVFS, err error) {
	pathN = normPath(pathN)
	cmd := CommandInfo{Command: "statvfs", Path: pathN}
	if _, have := c.ext[extStatvfs]; !have {
		return nil, c.failOp(opUnsupportedError(cmd))
	}
	err = c.invokeExpect(sshFxpExtended,
		32+len(pathN), cmd, sshFxpExtendedReply,
		func(w *packetWriter) {
			w.writeString(extStatvfs)
			w.writeString(pathN)
		},
		func(r *packetReader) (err error) {
			rv, err = decodeStatVFS(r)
			return
		})
	if err != nil {
		rv = nil
	}
	return
}

// StatVFS gets file system statistics for the filesystem holding the open
// file, via the fstatvfs@openssh.com extension.
func (f *File) StatVFS() (rv *StatVFS, err error) {
	c := f.client
	if err = c.checkHandle(f); err != nil {
		return
	}
	cmd := CommandInfo{Command: "fstatvfs", Path: f.pathN, Handle: f.handle}
	if _, have := c.ext[extFstatvfs]; !have {
		return nil, c.failOp(opUnsupportedError(cmd))
	}
	err = c.invokeExpect(sshFxpExtended,
		32+len(f.handle), cmd, sshFxpExtendedReply,
		func(w *packetWriter) {
			w.writeString(extFstatvfs)
			w.writeString(f.handle)
		},
		func(r *packetReader) (err error) {
			rv, err = decodeStatVFS(r)
			return
		})
	if err != nil {
		rv = nil
	}
	return
}

// Sync requests a flush of the contents of the open file to stable storage,
// via the fsync@openssh.com extension.
func (f *File) Sync() error {
	c := f.client
	if 0 == len(f.handle) {
		return os.ErrClosed
	}
	cmd := CommandInfo{Command: "fsync", Path: f.pathN, Handle: f.handle}
	if _, have := c.ext[extFsync]; !have {
		return c.failOp(opUnsupportedError(cmd))
	}
	return c.invokeExpectStatus(sshFxpExtended, 32+len(f.handle), cmd,
		func(w *packetWriter) {
			w.writeString(extFsync)
			w.writeString(f.handle)
		})
}
