package disk

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BlockID identifies one page of a paged file. FileName works as a namespace inside the
// key-value store, BlockNum is the page index within it.
type BlockID struct {
	FileName string
	BlockNum int64
}

func NewBlockID(fileName string, blockNum int64) BlockID {
	return BlockID{FileName: fileName, BlockNum: blockNum}
}

func (b BlockID) String() string {
	return fmt.Sprintf("[file %s, block %d]", b.FileName, b.BlockNum)
}

// Page . holds the contents of one block while it sits in a buffer pool frame. All
// fixed-size values are little endian.
type Page struct {
	bb []byte
}

func NewPage(blockSize int) *Page {
	return &Page{bb: make([]byte, blockSize)}
}

func NewPageFromByteSlice(b []byte) *Page {
	return &Page{bb: b}
}

func (p *Page) Size() int {
	return len(p.bb)
}

func (p *Page) GetInt(offset int32) int32 {
	return int32(binary.LittleEndian.Uint32(p.bb[offset:]))
}

// PutInt. set int ke byte array page di posisi = offset.
func (p *Page) PutInt(offset int32, val int32) {
	binary.LittleEndian.PutUint32(p.bb[offset:], uint32(val))
}

func (p *Page) GetUint32(offset int32) uint32 {
	return binary.LittleEndian.Uint32(p.bb[offset:])
}

func (p *Page) PutUint32(offset int32, val uint32) {
	binary.LittleEndian.PutUint32(p.bb[offset:], val)
}

func (p *Page) GetUint64(offset int32) uint64 {
	return binary.LittleEndian.Uint64(p.bb[offset:])
}

func (p *Page) PutUint64(offset int32, val uint64) {
	binary.LittleEndian.PutUint64(p.bb[offset:], val)
}

func (p *Page) GetFloat64(offset int32) float64 {
	return math.Float64frombits(p.GetUint64(offset))
}

func (p *Page) PutFloat64(offset int32, val float64) {
	p.PutUint64(offset, math.Float64bits(val))
}

func (p *Page) GetByte(offset int32) byte {
	return p.bb[offset]
}

func (p *Page) PutByte(offset int32, val byte) {
	p.bb[offset] = val
}

// GetBytes. the first 4 bytes at offset hold the length, the payload follows.
func (p *Page) GetBytes(offset int32) []byte {
	length := p.GetInt(offset)
	b := make([]byte, length)
	copy(b, p.bb[offset+4:offset+4+length])
	return b
}

// PutBytes. returns the number of bytes written (payload + 4 byte length prefix).
func (p *Page) PutBytes(offset int32, b []byte) (int, error) {
	if int(offset)+len(b)+4 > len(p.bb) {
		return 0, fmt.Errorf("%w: offset %d, length %d, page size %d", ErrPageOverflow, offset, len(b), len(p.bb))
	}
	p.PutInt(offset, int32(len(b)))
	copy(p.bb[offset+4:], b)
	return len(b) + 4, nil
}

func (p *Page) GetString(offset int32) string {
	return string(p.GetBytes(offset))
}

func (p *Page) PutString(offset int32, s string) (int, error) {
	return p.PutBytes(offset, []byte(s))
}

func (p *Page) Contents() []byte {
	return p.bb
}

// Load replaces the page contents with b, zero padding or truncating to the page size.
func (p *Page) Load(b []byte) {
	n := copy(p.bb, b)
	clear(p.bb[n:])
}

func (p *Page) Reset() {
	clear(p.bb)
}
