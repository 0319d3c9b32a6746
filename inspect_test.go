package strm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/strm/internal/crc"
	"github.com/meigma/strm/internal/testutil"
)

func TestInspect(t *testing.T) {
	t.Parallel()

	pattern := testutil.Repeat("abcd", 1000)
	a := newTestArchive(t,
		putSpec{"a.txt", SkinDefault, "hello"},
		putSpec{"p.bin", SkinAltB, string(pattern)},
	)
	out, _ := writeAndRead(t, a, SaveWithCompressionLevel(CompressionLevelAuto))

	infos, err := out.Inspect(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "a.txt", infos[0].Path)
	assert.False(t, infos[0].Compressed)
	assert.Equal(t, digest.FromString("hello"), infos[0].Digest)
	assert.Equal(t, out.Entry(0).Header.Hash, infos[0].Hash)

	assert.Equal(t, 1, infos[1].Index)
	assert.Equal(t, SkinAltB, infos[1].SkinFlag)
	assert.True(t, infos[1].Compressed)
	assert.Equal(t, int64(len(pattern)), infos[1].RawSize)
	assert.Less(t, infos[1].StoredSize, infos[1].RawSize)
	assert.Equal(t, digest.FromBytes(pattern), infos[1].Digest)

	// Replaced sources have no header hash yet.
	_, err = out.PutEntry(-1, "a.txt", RawBytes{Data: []byte("x")}, SkinDefault)
	require.NoError(t, err)
	infos, err = out.Inspect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, infos[0].Hash)
}

func TestVerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newTestArchive(t,
		putSpec{"a.txt", SkinDefault, "first"},
		putSpec{"b.txt", SkinDefault, "second payload"},
	)
	path := filepath.Join(t.TempDir(), "v.strm")
	_, err := a.Save(ctx, path)
	require.NoError(t, err)

	clean, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, clean.Verify(ctx))
	require.NoError(t, clean.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	corrupt, err := Open(path, WithEagerThreshold(0))
	require.NoError(t, err)
	defer corrupt.Close()
	err = corrupt.Verify(ctx)
	require.ErrorIs(t, err, ErrHashMismatch)
	assert.Contains(t, err.Error(), "b.txt")

	// Replacing the corrupt entry's source skips it.
	_, err = corrupt.PutEntry(-1, "b.txt", RawBytes{Data: []byte("fixed")}, SkinDefault)
	require.NoError(t, err)
	assert.NoError(t, corrupt.Verify(ctx))
}

func TestVerifyDetectsBadStream(t *testing.T) {
	t.Parallel()

	stream := []byte{0x40, 0x00}
	data := testutil.BuildArchive(t, []testutil.TestEntry{{
		CompressedSize:   2,
		DecompressedSize: 3,
		Hash:             crc.Checksum(DefaultHashParams(), stream),
		InnerPath:        "bad",
		Payload:          stream,
	}})
	path := testutil.WriteFile(t, t.TempDir(), "bad.strm", data)

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	assert.ErrorIs(t, a.Verify(context.Background()), ErrCorrupt)
}
