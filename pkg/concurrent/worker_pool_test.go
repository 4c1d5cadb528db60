package concurrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	chunks := [][]uint32{{1, 2, 3}, {4, 5}, {6}, {}}

	workers := NewWorkerPool[[]uint32, uint32](3, len(chunks))
	for _, c := range chunks {
		workers.AddJob(c)
	}
	workers.Close()
	workers.Start(func(job []uint32) uint32 {
		sum := uint32(0)
		for _, v := range job {
			sum += v
		}
		return sum
	})
	workers.Wait()

	total := uint32(0)
	count := 0
	for sum := range workers.CollectResults() {
		total += sum
		count++
	}
	assert.Equal(t, uint32(21), total)
	assert.Equal(t, len(chunks), count)
}
