package disk

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
)

// kvStore is the minimal key-value surface a block-oriented disk manager needs.
// get returns (nil, nil) for a missing key.
type kvStore interface {
	get(key []byte) ([]byte, error)
	set(key, value []byte) error
	close() error
}

// KVDiskManager stores every block of every paged file as one key-value pair.
// Blocks that were appended but never written read back as zero pages.
type KVDiskManager struct {
	mu        sync.Mutex
	kv        kvStore
	codec     *blockCodec
	blockSize int
	lengths   map[string]int64
	closed    bool
}

func newKVDiskManager(kv kvStore, blockSize int, compress bool) (*KVDiskManager, error) {
	codec, err := newBlockCodec(compress)
	if err != nil {
		return nil, err
	}
	return &KVDiskManager{
		kv:        kv,
		codec:     codec,
		blockSize: blockSize,
		lengths:   make(map[string]int64),
	}, nil
}

// Open opens the disk manager for backend ("pebble" or "badger") under dir/pages.
func Open(backend, dir string, blockSize int, compress bool) (*KVDiskManager, error) {
	pagesDir := filepath.Join(dir, storage.PAGES_DIR)
	switch backend {
	case "pebble":
		return OpenPebbleDiskManager(pagesDir, blockSize, compress)
	case "badger":
		return OpenBadgerDiskManager(pagesDir, blockSize, compress, false)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}

func blockKey(blockID BlockID) []byte {
	key := make([]byte, 0, len(blockID.FileName)+9)
	key = append(key, 'b')
	key = append(key, blockID.FileName...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, uint64(blockID.BlockNum))
}

func lengthKey(fileName string) []byte {
	return append([]byte{'l'}, fileName...)
}

func (dm *KVDiskManager) BlockSize() int {
	return dm.blockSize
}

// Read. copy block blockID into page. missing blocks are zero filled.
func (dm *KVDiskManager) Read(blockID BlockID, page *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return ErrClosed
	}

	length, err := dm.blockLengthLocked(blockID.FileName)
	if err != nil {
		return err
	}
	if blockID.BlockNum < 0 || blockID.BlockNum >= length {
		return fmt.Errorf("%w: %s, length %d", ErrBlockOutOfRange, blockID, length)
	}

	stored, err := dm.kv.get(blockKey(blockID))
	if err != nil {
		return fmt.Errorf("reading block %s: %w", blockID, err)
	}
	if stored == nil {
		page.Reset()
		return nil
	}
	raw, err := dm.codec.decode(stored, dm.blockSize)
	if err != nil {
		return fmt.Errorf("decompressing block %s: %w", blockID, err)
	}
	page.Load(raw)
	return nil
}

func (dm *KVDiskManager) Write(blockID BlockID, page *Page) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return ErrClosed
	}
	if err := dm.kv.set(blockKey(blockID), dm.codec.encode(page.Contents())); err != nil {
		return fmt.Errorf("writing block %s: %w", blockID, err)
	}
	return nil
}

// Append. grow fileName by one block and return its id.
func (dm *KVDiskManager) Append(fileName string) (BlockID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return BlockID{}, ErrClosed
	}

	length, err := dm.blockLengthLocked(fileName)
	if err != nil {
		return BlockID{}, err
	}
	blockID := NewBlockID(fileName, length)

	buf := binary.LittleEndian.AppendUint64(nil, uint64(length+1))
	if err := dm.kv.set(lengthKey(fileName), buf); err != nil {
		return BlockID{}, fmt.Errorf("appending block to %s: %w", fileName, err)
	}
	dm.lengths[fileName] = length + 1
	return blockID, nil
}

func (dm *KVDiskManager) BlockLength(fileName string) (int64, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.blockLengthLocked(fileName)
}

func (dm *KVDiskManager) blockLengthLocked(fileName string) (int64, error) {
	if length, ok := dm.lengths[fileName]; ok {
		return length, nil
	}
	buf, err := dm.kv.get(lengthKey(fileName))
	if err != nil {
		return 0, fmt.Errorf("reading length of %s: %w", fileName, err)
	}
	length := int64(0)
	if buf != nil {
		length = int64(binary.LittleEndian.Uint64(buf))
	}
	dm.lengths[fileName] = length
	return length, nil
}

func (dm *KVDiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return nil
	}
	dm.closed = true
	codecErr := dm.codec.close()
	if err := dm.kv.close(); err != nil {
		return err
	}
	return codecErr
}
