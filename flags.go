package wsftp

import (
	"fmt"
	"os"
)

// ModeToFlags translates a symbolic open mode ("r", "r+", "w", "wx", "w+",
// "wx+", "a", "ax", "a+", "ax+") into SSH_FXF open flag bits.
func ModeToFlags(mode string) (flags uint32, err error) {
	switch mode {
	case "r":
		flags = sshFxfRead
	case "r+":
		flags = sshFxfRead | sshFxfWrite
	case "w":
		flags = sshFxfWrite | sshFxfCreat | sshFxfTrunc
	case "w+":
		flags = sshFxfRead | sshFxfWrite | sshFxfCreat | sshFxfTrunc
	case "wx":
		flags = sshFxfWrite | sshFxfCreat | sshFxfExcl
	case "wx+":
		flags = sshFxfRead | sshFxfWrite | sshFxfCreat | sshFxfExcl
	case "a":
		flags = sshFxfWrite | sshFxfCreat | sshFxfAppend
	case "a+":
		flags = sshFxfRead | sshFxfWrite | sshFxfCreat | sshFxfAppend
	case "ax":
		flags = sshFxfWrite | sshFxfCreat | sshFxfAppend | sshFxfExcl
	case "ax+":
		flags = sshFxfRead | sshFxfWrite | sshFxfCreat | sshFxfAppend | sshFxfExcl
	default:
		err = fmt.Errorf("unknown file open mode %q", mode)
	}
	return
}

// MaskFlags discards any bits that are not SSH_FXF open flags.
func MaskFlags(flags uint32) uint32 { return flags & sshFxfAll }

// NormalizeFlags reduces an arbitrary open flag combination to one of the
// thirteen combinations that have a symbolic spelling in flagModes_:
//
//  1. EXCL suppresses TRUNC.
//  2. TRUNC suppresses APPEND.
//  3. Neither READ nor WRITE requested means READ.
//  4. Without CREATE only READ and WRITE survive; with CREATE,
//     WRITE is implied.
func NormalizeFlags(flags uint32) uint32 {
	flags = MaskFlags(flags)
	if flags&sshFxfExcl != 0 {
		flags &^= sshFxfTrunc
	}
	if flags&sshFxfTrunc != 0 {
		flags &^= sshFxfAppend
	}
	if flags&(sshFxfRead|sshFxfWrite) == 0 {
		flags |= sshFxfRead
	}
	if flags&sshFxfCreat == 0 {
		flags &= sshFxfRead | sshFxfWrite
	} else {
		flags |= sshFxfWrite
	}
	return flags
}

// every combination NormalizeFlags can produce has an entry here
var flagModes_ = map[uint32][]string{
	1:  {"r"},
	2:  {"r+"},
	3:  {"r+"},
	10: {"wx", "r+"},
	11: {"wx+", "r+"},
	14: {"a"},
	15: {"a+"},
	26: {"w"},
	27: {"w+"},
	42: {"wx"},
	43: {"wx+"},
	46: {"ax"},
	47: {"ax+"},
}

// FlagsToModes normalizes flags and returns the symbolic mode strings that
// describe the result.  Normalization is total, so a missing table entry can
// only mean a codec bug.
func FlagsToModes(flags uint32) []string {
	flags = NormalizeFlags(flags)
	modes, found := flagModes_[flags]
	if !found {
		panic(fmt.Sprintf("no symbolic mode for open flags %#x", flags))
	}
	return modes
}

// os.OpenFile modifier flags against their SSH_FXF bits; flags with no
// SFTP equivalent (O_SYNC and friends) are dropped
var pflagBits_ = []struct {
	osBit int
	wire  uint32
}{
	{os.O_APPEND, sshFxfAppend},
	{os.O_CREATE, sshFxfCreat},
	{os.O_TRUNC, sshFxfTrunc},
	{os.O_EXCL, sshFxfExcl},
}

// toPflags converts os.OpenFile flags into SSH_FXF bits.
func toPflags(osFlags int) (pflags uint32) {
	// O_RDONLY is zero, so the access mode cannot be tested bitwise
	switch {
	case osFlags&os.O_RDWR != 0:
		pflags = sshFxfRead | sshFxfWrite
	case osFlags&os.O_WRONLY != 0:
		pflags = sshFxfWrite
	default:
		pflags = sshFxfRead
	}
	for _, pb := range pflagBits_ {
		if osFlags&pb.osBit != 0 {
			pflags |= pb.wire
		}
	}
	return
}
