package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"
)

var ErrBufferPoolFull = errors.New("buffer pool full: every frame is pinned")

/*
BufferPoolManager caches a fixed number of pages. unpinned frames are evicted least recently
used first.

when every frame is pinned, FetchPage and NewPage block until another caller unpins one. callers
must not hold a pin while waiting for a second one, or they can wait forever.
*/
type BufferPoolManager struct {
	mu          sync.Mutex
	unpinned    *sync.Cond
	pinWait     time.Duration
	diskManager DiskManager
	frames      []*Buffer
	pageTable   map[disk.BlockID]int
	freeList    []int
	victims     *simplelru.LRU[int, struct{}]

	hits, misses uint64
}

type Option func(*BufferPoolManager)

// WithPinWait bounds how long a caller waits for a free frame before ErrBufferPoolFull.
// 0 waits until a frame is unpinned.
func WithPinWait(d time.Duration) Option {
	return func(bpm *BufferPoolManager) { bpm.pinWait = d }
}

func NewBufferPoolManager(diskManager DiskManager, numFrames int, opts ...Option) (*BufferPoolManager, error) {
	if numFrames <= 0 {
		return nil, fmt.Errorf("buffer pool needs at least one frame, got %d", numFrames)
	}
	victims, err := simplelru.NewLRU[int, struct{}](numFrames, nil)
	if err != nil {
		return nil, err
	}
	bpm := &BufferPoolManager{
		diskManager: diskManager,
		frames:      make([]*Buffer, numFrames),
		pageTable:   make(map[disk.BlockID]int, numFrames),
		freeList:    make([]int, 0, numFrames),
		victims:     victims,
	}
	bpm.unpinned = sync.NewCond(&bpm.mu)
	for _, opt := range opts {
		opt(bpm)
	}
	for i := numFrames - 1; i >= 0; i-- {
		bpm.frames[i] = NewBuffer(diskManager)
		bpm.freeList = append(bpm.freeList, i)
	}
	return bpm, nil
}

func (bpm *BufferPoolManager) BlockSize() int {
	return bpm.diskManager.BlockSize()
}

func (bpm *BufferPoolManager) BlockLength(fileName string) (int64, error) {
	return bpm.diskManager.BlockLength(fileName)
}

// FetchPage pins blockID and returns its page. every FetchPage must be paired with UnpinPage.
func (bpm *BufferPoolManager) FetchPage(blockID disk.BlockID) (*disk.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	var wait frameWait
	defer wait.stop()
	for {
		// another caller may have loaded the block while this one was waiting.
		if frameID, ok := bpm.pageTable[blockID]; ok {
			bpm.hits++
			buf := bpm.frames[frameID]
			if !buf.isPinned() {
				bpm.victims.Remove(frameID)
			}
			buf.incrementPin()
			return buf.getContents(), nil
		}

		frameID, err := bpm.chooseFrame()
		if errors.Is(err, ErrBufferPoolFull) {
			if err := bpm.waitForFrame(&wait); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		bpm.misses++
		buf := bpm.frames[frameID]
		if err := buf.assignToBlock(blockID); err != nil {
			bpm.releaseFrame(frameID)
			return nil, err
		}
		bpm.pageTable[blockID] = frameID
		buf.incrementPin()
		return buf.getContents(), nil
	}
}

// NewPage appends a zeroed block to fileName and returns it pinned.
func (bpm *BufferPoolManager) NewPage(fileName string) (disk.BlockID, *disk.Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	var wait frameWait
	defer wait.stop()
	frameID, err := bpm.chooseFrame()
	for errors.Is(err, ErrBufferPoolFull) {
		if err := bpm.waitForFrame(&wait); err != nil {
			return disk.BlockID{}, nil, err
		}
		frameID, err = bpm.chooseFrame()
	}
	if err != nil {
		return disk.BlockID{}, nil, err
	}

	blockID, err := bpm.diskManager.Append(fileName)
	if err != nil {
		bpm.releaseFrame(frameID)
		return disk.BlockID{}, nil, err
	}
	buf := bpm.frames[frameID]
	if err := buf.assignToNewBlock(blockID); err != nil {
		bpm.releaseFrame(frameID)
		return disk.BlockID{}, nil, err
	}
	bpm.pageTable[blockID] = frameID
	buf.incrementPin()
	return blockID, buf.getContents(), nil
}

type frameWait struct {
	deadline time.Time
	timer    *time.Timer
}

func (w *frameWait) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// waitForFrame blocks until a frame may be free. bpm.mu must be held.
func (bpm *BufferPoolManager) waitForFrame(w *frameWait) error {
	if bpm.pinWait > 0 {
		if w.timer == nil {
			w.deadline = time.Now().Add(bpm.pinWait)
			w.timer = time.AfterFunc(bpm.pinWait, bpm.unpinned.Broadcast)
		} else if !time.Now().Before(w.deadline) {
			return ErrBufferPoolFull
		}
	}
	bpm.unpinned.Wait()
	return nil
}

func (bpm *BufferPoolManager) releaseFrame(frameID int) {
	bpm.freeList = append(bpm.freeList, frameID)
	bpm.unpinned.Broadcast()
}

// UnpinPage releases one pin on blockID. returns false if the block is not resident or not pinned.
func (bpm *BufferPoolManager) UnpinPage(blockID disk.BlockID, isDirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[blockID]
	if !ok {
		return false
	}
	buf := bpm.frames[frameID]
	if !buf.isPinned() {
		return false
	}
	if isDirty {
		buf.setDirty()
	}
	buf.decrementPin()
	if !buf.isPinned() {
		bpm.victims.Add(frameID, struct{}{})
		bpm.unpinned.Broadcast()
	}
	return true
}

// chooseFrame. take a free frame, otherwise evict the least recently unpinned one.
func (bpm *BufferPoolManager) chooseFrame() (int, error) {
	if n := len(bpm.freeList); n > 0 {
		frameID := bpm.freeList[n-1]
		bpm.freeList = bpm.freeList[:n-1]
		return frameID, nil
	}
	frameID, _, ok := bpm.victims.RemoveOldest()
	if !ok {
		return -1, ErrBufferPoolFull
	}
	buf := bpm.frames[frameID]
	if err := buf.flush(); err != nil {
		bpm.victims.Add(frameID, struct{}{})
		return -1, err
	}
	delete(bpm.pageTable, buf.getBlockID())
	return frameID, nil
}

func (bpm *BufferPoolManager) FlushAll() error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	for _, buf := range bpm.frames {
		if err := buf.flush(); err != nil {
			return err
		}
	}
	return nil
}

// HitRatio. fraction of FetchPage calls served without a disk read.
func (bpm *BufferPoolManager) HitRatio() float64 {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	total := bpm.hits + bpm.misses
	if total == 0 {
		return 0
	}
	return float64(bpm.hits) / float64(total)
}

func (bpm *BufferPoolManager) Close() error {
	return errors.Join(bpm.FlushAll(), bpm.diskManager.Close())
}
