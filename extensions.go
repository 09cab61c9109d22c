package wsftp

import "strings"

// extension names this client understands
const (
	extHardlink        = "hardlink@openssh.com"
	extPosixRename     = "posix-rename@openssh.com"
	extStatvfs         = "statvfs@openssh.com"
	extFstatvfs        = "fstatvfs@openssh.com"
	extFsync           = "fsync@openssh.com"
	extNewlineSftpWs   = "newline@sftp.ws"
	extNewline         = "newline"
	extNewlineVandyke  = "newline@vandyke.com"
	extCharset         = "charset@sftp.ws"
	extMetadata        = "meta@sftp.ws"
	extVersions        = "versions"
	extVendorID        = "vendor-id"
	extCopyFile        = "copy-file"
	extCopyData        = "copy-data"
	extCheckFile       = "check-file"
	extCheckFileHandle = "check-file-handle"
	extCheckFileName   = "check-file-name"
	extSupported       = "supported"
	extSupported2      = "supported2"
	extFsAttribs       = "default-fs-attribs@vandyke.com"
	extSymlinkOrder    = "symlink-order@rjk.greenend.org.uk"
	extLinkOrder       = "link-order@rjk.greenend.org.uk"
)

// the explicit allowlist of known extensions
var knownExtensions_ = map[string]bool{
	extHardlink:        true,
	extPosixRename:     true,
	extStatvfs:         true,
	extFstatvfs:        true,
	extFsync:           true,
	extNewlineSftpWs:   true,
	extNewline:         true,
	extNewlineVandyke:  true,
	extCharset:         true,
	extMetadata:        true,
	extVersions:        true,
	extVendorID:        true,
	extCopyFile:        true,
	extCopyData:        true,
	extCheckFile:       true,
	extCheckFileHandle: true,
	extCheckFileName:   true,
	extSupported:       true,
	extSupported2:      true,
	extFsAttribs:       true,
	extSymlinkOrder:    true,
	extLinkOrder:       true,
}

// IsKnownExtension tells whether name is an extension this client
// understands.
func IsKnownExtension(name string) bool { return knownExtensions_[name] }

// ExtContains tells whether v appears in the comma separated list csv.
// Servers advertise multi-version extensions as "1,2".
func ExtContains(csv, v string) bool {
	return strings.Contains(","+csv+",", ","+v+",")
}

// VendorID is the decoded "vendor-id" extension payload.
type VendorID struct {
	VendorName     string
	ProductName    string
	ProductVersion string
	ProductBuild   int64
}

// SupportedInfo is the decoded "supported" / "supported2" extension payload.
// The vector fields and AttribExtensionsNames are only present for
// supported2 (v2); ExtensionsNames is filled for both.
type SupportedInfo struct {
	SupportedAttributeMask uint32
	SupportedAttributeBits uint32
	SupportedOpenFlags     uint32
	SupportedAccessMask    uint32
	MaxReadSize            uint32

	SupportedOpenBlockVector uint16
	SupportedBlockVector     uint16
	AttribExtensionsNames    []string
	ExtensionsNames          []string
}

// FsAttribs is the decoded "default-fs-attribs@vandyke.com" payload.
type FsAttribs struct {
	CasePreserved     bool
	CaseSensitive     bool
	IllegalCharacters string
	ReservedNames     []string
}

// decodeExtension turns an advertised extension value into its parsed form:
// a struct for the structured extensions, the string itself for other known
// extensions, and the raw bytes for anything unknown.
func decodeExtension(name, data string) (parsed any, err error) {
	switch name {
	case extVendorID:
		return decodeVendorID(data)
	case extNewlineVandyke:
		r := packetReader{buf: []byte(data)}
		return r.readString()
	case extSupported:
		return decodeSupported(data, false)
	case extSupported2:
		return decodeSupported(data, true)
	case extFsAttribs:
		return decodeFsAttribs(data)
	}
	if IsKnownExtension(name) {
		return data, nil
	}
	return []byte(data), nil
}

func decodeVendorID(data string) (v *VendorID, err error) {
	r := packetReader{buf: []byte(data)}
	v = &VendorID{}
	if v.VendorName, err = r.readString(); err != nil {
		return nil, err
	}
	if v.ProductName, err = r.readString(); err != nil {
		return nil, err
	}
	if v.ProductVersion, err = r.readString(); err != nil {
		return nil, err
	}
	if v.ProductBuild, err = r.readInt64(); err != nil {
		return nil, err
	}
	return
}

func decodeSupported(data string, v2 bool) (s *SupportedInfo, err error) {
	r := packetReader{buf: []byte(data)}
	s = &SupportedInfo{}
	if s.SupportedAttributeMask, err = r.readUint32(); err != nil {
		return nil, err
	}
	if s.SupportedAttributeBits, err = r.readUint32(); err != nil {
		return nil, err
	}
	if s.SupportedOpenFlags, err = r.readUint32(); err != nil {
		return nil, err
	}
	if s.SupportedAccessMask, err = r.readUint32(); err != nil {
		return nil, err
	}
	if s.MaxReadSize, err = r.readUint32(); err != nil {
		return nil, err
	}

	if !v2 {
		// v1: any trailing strings are extension names, to end of frame
		for 0 != r.remaining() {
			var name string
			if name, err = r.readString(); err != nil {
				return nil, err
			}
			s.ExtensionsNames = append(s.ExtensionsNames, name)
		}
		return
	}

	if s.SupportedOpenBlockVector, err = r.readUint16(); err != nil {
		return nil, err
	}
	if s.SupportedBlockVector, err = r.readUint16(); err != nil {
		return nil, err
	}
	var count uint32
	if count, err = r.readUint32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var name string
		if name, err = r.readString(); err != nil {
			return nil, err
		}
		s.AttribExtensionsNames = append(s.AttribExtensionsNames, name)
	}
	if count, err = r.readUint32(); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var name string
		if name, err = r.readString(); err != nil {
			return nil, err
		}
		s.ExtensionsNames = append(s.ExtensionsNames, name)
	}
	return
}

func decodeFsAttribs(data string) (fa *FsAttribs, err error) {
	r := packetReader{buf: []byte(data)}
	fa = &FsAttribs{}
	var b uint8
	if b, err = r.readUint8(); err != nil {
		return nil, err
	}
	fa.CasePreserved = 0 != b
	if b, err = r.readUint8(); err != nil {
		return nil, err
	}
	fa.CaseSensitive = 0 != b
	if fa.IllegalCharacters, err = r.readString(); err != nil {
		return nil, err
	}
	var count int32
	if count, err = r.readInt32(); err != nil {
		return nil, err
	}
	for i := int32(0); i < count; i++ {
		var name string
		if name, err = r.readString(); err != nil {
			return nil, err
		}
		fa.ReservedNames = append(fa.ReservedNames, name)
	}
	return
}

// deriveFeatures maps the advertised extension set onto the capabilities
// that gate operations.  Hard links and posix rename require the server to
// advertise version 1 of the corresponding openssh extension.  The byte
// copy and file hash extensions are issued optimistically - servers that
// lack them answer SSH_FX_OP_UNSUPPORTED themselves.
func deriveFeatures(ext map[string]string) map[Feature]bool {
	features := make(map[Feature]bool, 4)
	if ExtContains(ext[extHardlink], "1") {
		features[FeatureHardlink] = true
	}
	if ExtContains(ext[extPosixRename], "1") {
		features[FeaturePosixRename] = true
	}
	features[FeatureCopyData] = true
	features[FeatureCheckFileHandle] = true
	return features
}
