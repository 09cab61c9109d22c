// Package wsftp implements the client side of the SSH File Transfer Protocol
// (version 3) over an abstract framed channel.
//
// Unlike a traditional SFTP client, this package does not own the transport.
// The caller supplies a Channel - anything that can send a framed packet and
// deliver inbound frames and a close notification.  A websocket, an SSH
// session's stdin/stdout pipes (see NewClientPipe), or an in-memory pipe all
// work.  The Client multiplexes concurrent requests over the channel by
// request id and completes each caller when its response arrives.
//
// https://filezilla-project.org/specs/draft-ietf-secsh-filexfer-02.txt
package wsftp

const sftpProtocolVersion = 3

const (
	// the smallest write payload any compliant server must accept,
	// and therefore our outbound payload bound
	maxWriteBlockLength = 32 * 1024

	// reads are clamped to this - OpenSsh serves up to 256KiB
	maxReadBlockLength = 256 * 1024

	// per-packet overhead allowance on top of the payload bound
	packetHeadroom = 1024

	// room for length prefix, type, and request id
	frameHeaderLen = 9
)

const (
	sshFxpInit          = 1
	sshFxpVersion       = 2
	sshFxpOpen          = 3
	sshFxpClose         = 4
	sshFxpRead          = 5
	sshFxpWrite         = 6
	sshFxpLstat         = 7
	sshFxpFstat         = 8
	sshFxpSetstat       = 9
	sshFxpFsetstat      = 10
	sshFxpOpendir       = 11
	sshFxpReaddir       = 12
	sshFxpRemove        = 13
	sshFxpMkdir         = 14
	sshFxpRmdir         = 15
	sshFxpRealpath      = 16
	sshFxpStat          = 17
	sshFxpRename        = 18
	sshFxpReadlink      = 19
	sshFxpSymlink       = 20
	sshFxpStatus        = 101
	sshFxpHandle        = 102
	sshFxpData          = 103
	sshFxpName          = 104
	sshFxpAttrs         = 105
	sshFxpExtended      = 200
	sshFxpExtendedReply = 201
)

const (
	sshFxOk               = 0
	sshFxEOF              = 1
	sshFxNoSuchFile       = 2
	sshFxPermissionDenied = 3
	sshFxFailure          = 4
	sshFxBadMessage       = 5
	sshFxNoConnection     = 6 // client-generated only
	sshFxConnectionLost   = 7 // client-generated only
	sshFxOPUnsupported    = 8
)

const (
	sshFxfRead   = 0x00000001
	sshFxfWrite  = 0x00000002
	sshFxfAppend = 0x00000004
	sshFxfCreat  = 0x00000008
	sshFxfTrunc  = 0x00000010
	sshFxfExcl   = 0x00000020

	sshFxfAll = sshFxfRead | sshFxfWrite | sshFxfAppend |
		sshFxfCreat | sshFxfTrunc | sshFxfExcl
)

// RenameFlags for Client.Rename.  Zero requests the plain SSH_FXP_RENAME,
// which fails if the target exists.
const (
	RenameOverwrite = uint32(0x00000001)
)

// A Feature is a named capability derived from the extensions the server
// advertised at handshake.  Operations gated on an absent feature fail with
// ErrSSHFxOpUnsupported before any packet is sent.
type Feature string

const (
	FeatureHardlink        Feature = "HARDLINK"
	FeaturePosixRename     Feature = "POSIX_RENAME"
	FeatureCopyData        Feature = "COPY_DATA"
	FeatureCheckFileHandle Feature = "CHECK_FILE_HANDLE"
)
