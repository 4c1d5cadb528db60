package buffer

import "github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"

type DiskManager interface {
	Read(blockID disk.BlockID, page *disk.Page) error
	Write(blockID disk.BlockID, page *disk.Page) error
	Append(fileName string) (disk.BlockID, error)
	BlockLength(fileName string) (int64, error)
	BlockSize() int
	Close() error
}

// Buffer holds one page in memory while it is pinned (pins > 0). an unpinned buffer may be
// reassigned to another block; its page is written back first if dirty.
type Buffer struct {
	diskManager DiskManager
	contents    *disk.Page
	blockID     disk.BlockID
	assigned    bool
	pins        int
	isDirty     bool
}

func NewBuffer(diskManager DiskManager) *Buffer {
	return &Buffer{
		diskManager: diskManager,
		contents:    disk.NewPage(diskManager.BlockSize()),
	}
}

func (buf *Buffer) getContents() *disk.Page {
	return buf.contents
}

func (buf *Buffer) getBlockID() disk.BlockID {
	return buf.blockID
}

func (buf *Buffer) isPinned() bool {
	return buf.pins > 0
}

// assignToBlock. flush the previous block, then read blockID into buf.contents.
func (buf *Buffer) assignToBlock(blockID disk.BlockID) error {
	if err := buf.flush(); err != nil {
		return err
	}
	if err := buf.diskManager.Read(blockID, buf.contents); err != nil {
		buf.assigned = false
		return err
	}
	buf.blockID = blockID
	buf.assigned = true
	buf.pins = 0
	return nil
}

// assignToNewBlock. like assignToBlock but the block was just appended, so there is nothing to read.
func (buf *Buffer) assignToNewBlock(blockID disk.BlockID) error {
	if err := buf.flush(); err != nil {
		return err
	}
	buf.contents.Reset()
	buf.blockID = blockID
	buf.assigned = true
	buf.pins = 0
	buf.isDirty = true
	return nil
}

// flush. write the page back if it was modified.
func (buf *Buffer) flush() error {
	if !buf.assigned || !buf.isDirty {
		return nil
	}
	if err := buf.diskManager.Write(buf.blockID, buf.contents); err != nil {
		return err
	}
	buf.isDirty = false
	return nil
}

func (buf *Buffer) incrementPin() {
	buf.pins++
}

func (buf *Buffer) getPinCount() int {
	return buf.pins
}

func (buf *Buffer) decrementPin() {
	buf.pins--
}

func (buf *Buffer) setDirty() {
	buf.isDirty = true
}

func (buf *Buffer) getIsDirty() bool {
	return buf.isDirty
}
