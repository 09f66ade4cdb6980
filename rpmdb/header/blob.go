package header

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
)

// Blob layout, little-endian:
// [magic 'RPMH'] [u32 version] [u32 flags]
// name, version, release, arch as u32-length-prefixed strings, [u32 epoch],
// then basenames, dirnames, provides, requires as u32 counts of strings and
// dirindexes as a u32 count of u32s.
var blobMagic = []byte{'R', 'P', 'M', 'H'}

const (
	blobVersion uint32 = 1
	flagEpoch   uint32 = 1 << 0
)

// Marshal encodes h into the stored blob form.
func Marshal(h *Header) []byte {
	var buf bytes.Buffer
	buf.Write(blobMagic)
	u32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	str := func(s string) {
		u32(uint32(len(s)))
		buf.WriteString(s)
	}
	strs := func(ss []string) {
		u32(uint32(len(ss)))
		for _, s := range ss {
			str(s)
		}
	}

	u32(blobVersion)
	var flags uint32
	if h.HasEpoch {
		flags |= flagEpoch
	}
	u32(flags)
	str(h.Name)
	str(h.Version)
	str(h.Release)
	str(h.Arch)
	u32(h.Epoch)
	strs(h.BaseNames)
	strs(h.DirNames)
	u32(uint32(len(h.DirIndexes)))
	for _, d := range h.DirIndexes {
		u32(d)
	}
	strs(h.Provides)
	strs(h.Requires)
	return buf.Bytes()
}

// blobReader decodes sequentially and keeps the first error.
type blobReader struct {
	r   *bytes.Reader
	err error
}

func (br *blobReader) u32() uint32 {
	if br.err != nil {
		return 0
	}
	var v uint32
	br.err = binary.Read(br.r, binary.LittleEndian, &v)
	return v
}

// count reads a length and rejects one the remaining input cannot hold.
func (br *blobReader) count(unit int) int {
	n := br.u32()
	if br.err == nil && uint64(n)*uint64(unit) > uint64(br.r.Len()) {
		br.err = io.ErrUnexpectedEOF
	}
	if br.err != nil {
		return 0
	}
	return int(n)
}

func (br *blobReader) str() string {
	n := br.count(1)
	if n == 0 {
		return ""
	}
	b := make([]byte, n)
	_, br.err = io.ReadFull(br.r, b)
	return string(b)
}

func (br *blobReader) strs() []string {
	n := br.count(4)
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = br.str()
	}
	return out
}

// Unmarshal decodes a stored blob. Anything malformed is reported as
// common.ErrCorrupt.
func Unmarshal(data []byte) (*Header, error) {
	if len(data) < len(blobMagic) || !bytes.Equal(data[:len(blobMagic)], blobMagic) {
		return nil, common.Corruptf("header blob has bad magic")
	}
	br := &blobReader{r: bytes.NewReader(data[len(blobMagic):])}
	if v := br.u32(); br.err == nil && v != blobVersion {
		return nil, common.Corruptf("header blob version %d", v)
	}
	flags := br.u32()

	h := &Header{
		Name:    br.str(),
		Version: br.str(),
		Release: br.str(),
		Arch:    br.str(),
	}
	h.Epoch = br.u32()
	h.HasEpoch = flags&flagEpoch != 0
	h.BaseNames = br.strs()
	h.DirNames = br.strs()
	if n := br.count(4); n > 0 {
		h.DirIndexes = make([]uint32, n)
		for i := range h.DirIndexes {
			h.DirIndexes[i] = br.u32()
		}
	}
	h.Provides = br.strs()
	h.Requires = br.strs()

	if br.err != nil {
		return nil, common.Corruptf("header blob truncated: %v", br.err)
	}
	if br.r.Len() != 0 {
		return nil, common.Corruptf("header blob has %d trailing bytes", br.r.Len())
	}
	if len(h.DirIndexes) != len(h.BaseNames) {
		return nil, common.Corruptf("header has %d base names but %d dir indexes", len(h.BaseNames), len(h.DirIndexes))
	}
	for i, d := range h.DirIndexes {
		if int(d) >= len(h.DirNames) {
			return nil, common.Corruptf("file %d points at dir %d of %d", i, d, len(h.DirNames))
		}
	}
	return h, nil
}
