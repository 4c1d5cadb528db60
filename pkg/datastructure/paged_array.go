package datastructure

import (
	"fmt"
	"sync"

	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// ElementCodec writes fixed-size elements into a page.
type ElementCodec[T any] interface {
	Size() int
	Encode(p *disk.Page, offset int32, v T)
	Decode(p *disk.Page, offset int32) T
}

// PageSource is the part of the buffer pool a PagedArray needs.
type PageSource interface {
	FetchPage(blockID disk.BlockID) (*disk.Page, error)
	UnpinPage(blockID disk.BlockID, isDirty bool) bool
	NewPage(fileName string) (disk.BlockID, *disk.Page, error)
	BlockLength(fileName string) (int64, error)
	BlockSize() int
}

// PagedArray stores its elements in the blocks of one paged file. pages are fetched through the
// buffer pool, so only the hot part of the array lives in memory.
type PagedArray[T any] struct {
	mu       sync.Mutex
	pool     PageSource
	codec    ElementCodec[T]
	fileName string
	perPage  int64
	length   int64
	pages    int64
}

func NewPagedArray[T any](pool PageSource, fileName string, codec ElementCodec[T]) (*PagedArray[T], error) {
	perPage := int64(pool.BlockSize() / codec.Size())
	util.AssertPanic(perPage > 0, "page size smaller than one element")

	pages, err := pool.BlockLength(fileName)
	if err != nil {
		return nil, err
	}
	return &PagedArray[T]{
		pool:     pool,
		codec:    codec,
		fileName: fileName,
		perPage:  perPage,
		pages:    pages,
	}, nil
}

func (a *PagedArray[T]) Len() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.length
}

// Resize. appends zeroed pages as needed. elements exposed again after a shrink are cleared.
func (a *PagedArray[T]) Resize(n int64) error {
	if n < 0 {
		return fmt.Errorf("negative array length %d", n)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if n > a.length {
		var zero T
		end := min(n, a.pages*a.perPage)
		for i := a.length; i < end; i++ {
			if err := a.set(i, zero); err != nil {
				return err
			}
		}
	}

	needed := (n + a.perPage - 1) / a.perPage
	for a.pages < needed {
		blockID, _, err := a.pool.NewPage(a.fileName)
		if err != nil {
			return err
		}
		a.pool.UnpinPage(blockID, true)
		a.pages++
	}
	a.length = n
	return nil
}

func (a *PagedArray[T]) locate(i int64) (disk.BlockID, int32) {
	return disk.NewBlockID(a.fileName, i/a.perPage), int32((i % a.perPage) * int64(a.codec.Size()))
}

func (a *PagedArray[T]) Get(i int64) (T, error) {
	var zero T
	if i < 0 || i >= a.Len() {
		return zero, fmt.Errorf("index %d out of range [0, %d)", i, a.Len())
	}
	blockID, offset := a.locate(i)
	page, err := a.pool.FetchPage(blockID)
	if err != nil {
		return zero, err
	}
	v := a.codec.Decode(page, offset)
	a.pool.UnpinPage(blockID, false)
	return v, nil
}

func (a *PagedArray[T]) Set(i int64, v T) error {
	if i < 0 || i >= a.Len() {
		return fmt.Errorf("index %d out of range [0, %d)", i, a.Len())
	}
	return a.set(i, v)
}

func (a *PagedArray[T]) set(i int64, v T) error {
	blockID, offset := a.locate(i)
	page, err := a.pool.FetchPage(blockID)
	if err != nil {
		return err
	}
	a.codec.Encode(page, offset, v)
	a.pool.UnpinPage(blockID, true)
	return nil
}

// Close. the pages belong to the buffer pool, which is closed by its owner.
func (a *PagedArray[T]) Close() error {
	return nil
}

type Uint32Codec struct{}

func (Uint32Codec) Size() int { return 4 }

func (Uint32Codec) Encode(p *disk.Page, offset int32, v uint32) {
	p.PutUint32(offset, v)
}

func (Uint32Codec) Decode(p *disk.Page, offset int32) uint32 {
	return p.GetUint32(offset)
}

const (
	forwardBit  = 0
	backwardBit = 1
)

// ArcDataCodec. weight (8 byte) | via (4 byte) | direction flags bit packed (4 byte)
type ArcDataCodec struct{}

func (ArcDataCodec) Size() int { return 16 }

func (ArcDataCodec) Encode(p *disk.Page, offset int32, d ArcData) {
	p.PutFloat64(offset, d.Weight)
	p.PutInt(offset+8, d.Via)
	flags := util.BitPackIntBool(0, d.Forward, forwardBit)
	flags = util.BitPackIntBool(flags, d.Backward, backwardBit)
	p.PutInt(offset+12, flags)
}

func (ArcDataCodec) Decode(p *disk.Page, offset int32) ArcData {
	flags := p.GetInt(offset + 12)
	flags, backward := util.BitUnpackIntBool(flags, backwardBit)
	_, forward := util.BitUnpackIntBool(flags, forwardBit)
	return ArcData{
		Weight:   p.GetFloat64(offset),
		Via:      p.GetInt(offset + 8),
		Forward:  forward,
		Backward: backward,
	}
}

type CoordinateCodec struct{}

func (CoordinateCodec) Size() int { return 16 }

func (CoordinateCodec) Encode(p *disk.Page, offset int32, c Coordinate) {
	p.PutFloat64(offset, c.Lat)
	p.PutFloat64(offset+8, c.Lon)
}

func (CoordinateCodec) Decode(p *disk.Page, offset int32) Coordinate {
	return NewCoordinate(p.GetFloat64(offset), p.GetFloat64(offset+8))
}
