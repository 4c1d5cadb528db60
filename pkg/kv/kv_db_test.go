package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

type locations []datastructure.Coordinate

func (l locations) VertexCount() uint32 { return uint32(len(l)) }

func (l locations) GetCoordinate(v uint32) datastructure.Coordinate { return l[v] }

func TestH3IndexedVertices(t *testing.T) {
	db, err := OpenKVDB("", true, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	locs := locations{
		datastructure.NewCoordinate(-7.550248, 110.78316),
		datastructure.NewCoordinate(-7.550300, 110.78320),
		datastructure.NewCoordinate(-7.560144, 110.787027),
	}
	require.NoError(t, db.BuildH3IndexedVertices(context.Background(), locs))

	near, err := db.GetNearestVertices(-7.550248, 110.78316)
	require.NoError(t, err)
	ids := make([]uint32, 0, len(near))
	for _, v := range near {
		ids = append(ids, v.ID)
	}
	assert.Contains(t, ids, uint32(0))
	assert.NotContains(t, ids, uint32(2))

	// roughly 500 m away from every vertex: found through the widened search.
	widened, err := db.GetNearestVertices(-7.5545, 110.7850)
	require.NoError(t, err)
	assert.NotEmpty(t, widened)

	_, err = db.GetNearestVertices(51.5, -0.12)
	assert.ErrorIs(t, err, ErrVerticesNotFound)
}

func TestEncodeVertices(t *testing.T) {
	in := []KVVertex{{ID: 3, Lat: 1.5, Lon: 2.5}, {ID: 9, Lat: -1, Lon: 0}}
	bb, err := encodeVertices(in)
	require.NoError(t, err)
	out, err := loadVertices(bb)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := loadVertices(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
