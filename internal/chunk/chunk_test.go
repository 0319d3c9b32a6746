package chunk

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/strm/internal/codec"
)

func testPayload(n int) []byte {
	rng := rand.New(rand.NewPCG(3, 9))
	b := make([]byte, n)
	for i := range b {
		if i%64 < 40 {
			b[i] = byte(i / 64)
		} else {
			b[i] = byte(rng.Uint32())
		}
	}
	return b
}

// sequential is the reference result: each chunk encoded in turn.
func sequential(t *testing.T, src []byte, effort, chunkSize int) []byte {
	t.Helper()
	var out []byte
	for _, c := range split(src, chunkSize) {
		enc, err := codec.Encode(context.Background(), c, effort)
		require.NoError(t, err)
		out = append(out, enc...)
	}
	return out
}

func TestSplit(t *testing.T) {
	t.Parallel()

	chunks := split(make([]byte, 10), 4)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4)
	assert.Len(t, chunks[1], 4)
	assert.Len(t, chunks[2], 2)
}

func TestCompressSmallInputSkipsChunking(t *testing.T) {
	t.Parallel()

	src := testPayload(1000)
	want, err := codec.Encode(context.Background(), src, 4)
	require.NoError(t, err)

	for _, chunkSize := range []int{0, -1, 1000, 4096} {
		got, err := Compress(context.Background(), src, 4, chunkSize)
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunk size %d", chunkSize)
	}
}

func TestCompressMatchesSequential(t *testing.T) {
	t.Parallel()

	src := testPayload(100_003)
	for _, chunkSize := range []int{1, 7, 1024, 33_333, 100_002} {
		for _, workers := range []int{0, 1, 3, 16} {
			got, err := Compress(context.Background(), src, 4, chunkSize, WithWorkers(workers))
			require.NoError(t, err)
			assert.Equal(t, sequential(t, src, 4, chunkSize), got, "chunk %d workers %d", chunkSize, workers)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	src := testPayload(250_000)
	for _, chunkSize := range []int{64, 4096, 65536} {
		stream, err := Compress(context.Background(), src, 8, chunkSize)
		require.NoError(t, err)
		got, err := codec.Decode(stream, len(stream), len(src))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(src, got), "chunk size %d", chunkSize)
	}
}

func TestCompressDeterministic(t *testing.T) {
	t.Parallel()

	src := testPayload(80_000)
	first, err := Compress(context.Background(), src, 4, 5000, WithWorkers(8))
	require.NoError(t, err)
	for range 5 {
		again, err := Compress(context.Background(), src, 4, 5000, WithWorkers(8))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompressOrderIndependentOfCompletion(t *testing.T) {
	t.Parallel()

	src := testPayload(10 * 512)
	// Earlier chunks finish last.
	slowFirst := func(ctx context.Context, c []byte, effort int) ([]byte, error) {
		delay := time.Duration(c[0]%8) * time.Millisecond
		if &c[0] == &src[0] {
			delay = 20 * time.Millisecond
		}
		time.Sleep(delay)
		return codec.Encode(ctx, c, effort)
	}

	got, err := Compress(context.Background(), src, 2, 512, WithWorkers(10), WithEncoder(slowFirst))
	require.NoError(t, err)
	assert.Equal(t, sequential(t, src, 2, 512), got)
}

func TestCompressPropagatesEncoderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls atomic.Int32
	failing := func(ctx context.Context, c []byte, effort int) ([]byte, error) {
		if calls.Add(1) == 3 {
			return nil, boom
		}
		return codec.Encode(ctx, c, effort)
	}

	got, err := Compress(context.Background(), testPayload(8192), 2, 512, WithWorkers(2), WithEncoder(failing))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestCompressCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := Compress(ctx, testPayload(8192), 2, 512)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}
