package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "gobank/errors"
)

func TestSequence_Deterministic(t *testing.T) {
	seq := NewSequence(1)

	for want := int64(1); want <= 5; want++ {
		id, err := seq.NextID()
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, int64(6), seq.Peek())
}

func TestSequence_StartClamped(t *testing.T) {
	id, err := NewSequence(0).NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = NewSequence(100).NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
}

func TestSequence_ConcurrentUnique(t *testing.T) {
	seq := NewSequence(1)
	const workers, perWorker = 8, 250

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, _ := seq.NextID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNewSnowflake_NodeRange(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  int64
		wantErr bool
	}{
		{name: "最小值", nodeID: 0},
		{name: "最大值", nodeID: 1023},
		{name: "负数", nodeID: -1, wantErr: true},
		{name: "超过最大值", nodeID: 1024, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewSnowflake(tt.nodeID)
			if tt.wantErr {
				assert.True(t, appErrors.IsErrorCode(err, appErrors.ErrCodeInvalidInput))
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, gen)
		})
	}
}

func TestSnowflake_SameMillisecondIncrementsSequence(t *testing.T) {
	gen, err := NewSnowflake(7)
	require.NoError(t, err)
	ms := epoch + 5000
	gen.now = func() int64 { return ms }

	first, err := gen.NextID()
	require.NoError(t, err)
	second, err := gen.NextID()
	require.NoError(t, err)

	assert.Greater(t, second, first)
	p1, p2 := ParseSnowflake(first), ParseSnowflake(second)
	assert.Equal(t, int64(0), p1.Sequence)
	assert.Equal(t, int64(1), p2.Sequence)
	assert.Equal(t, int64(7), p2.NodeID)
	assert.Equal(t, ms, p2.Timestamp.UnixMilli())
}

func TestSnowflake_ClockBackwards(t *testing.T) {
	gen, err := NewSnowflake(1)
	require.NoError(t, err)
	ms := epoch + 10
	gen.now = func() int64 { return ms }

	_, err = gen.NextID()
	require.NoError(t, err)

	ms = epoch + 5
	_, err = gen.NextID()
	assert.Error(t, err)
}

func TestGeneratorInterface(t *testing.T) {
	var _ Generator = (*Sequence)(nil)
	var _ Generator = (*Snowflake)(nil)
}
