package strm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/strm/internal/crc"
	"github.com/meigma/strm/internal/testutil"
)

func writeAndRead(t *testing.T, a *Archive, opts ...SaveOption) (*Archive, SaveStats) {
	t.Helper()

	var buf bytes.Buffer
	stats, err := a.Write(context.Background(), &buf, opts...)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), stats.BytesWritten)

	out, err := Read(&buf)
	require.NoError(t, err)
	return out, stats
}

func withCompressor(fn compressFunc) SaveOption {
	return func(c *saveConfig) {
		c.compress = fn
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	text := testutil.Text(7, 20000)
	noise := testutil.Random(7, 300)
	a := newTestArchive(t,
		putSpec{"chara/hero/body.mdl", SkinDefault, string(text)},
		putSpec{"chara/hero/body.mdl", SkinAltA, string(testutil.Repeat("abcd", 100000))},
		putSpec{"noise.bin", SkinBaseB, string(noise)},
		putSpec{"empty", SkinDefault, ""},
	)
	a.Entry(0).Header.Unknown = 0x1234

	levels := []int{0, CompressionLevelAuto, 1, 4}
	for _, level := range levels {
		out, stats := writeAndRead(t, a, SaveWithCompressionLevel(level), SaveWithChunkSize(4096))
		require.Equal(t, a.Len(), out.Len(), "level %d", level)
		assert.Equal(t, a.Len(), stats.Entries)

		for i, want := range a.Entries() {
			got := out.Entry(i)
			assert.Equal(t, want.Path(), got.Path())
			assert.Equal(t, want.Flag(), got.Flag())
			assert.Equal(t, want.Header.Unknown, got.Header.Unknown)
			assert.Equal(t, rawString(t, want), rawString(t, got), "level %d entry %d", level, i)

			stored, err := storedBytes(got.Source())
			require.NoError(t, err)
			assert.Equal(t, crc.Checksum(DefaultHashParams(), stored), got.Header.Hash)
		}
		assert.NoError(t, out.Verify(context.Background()))
	}
}

func TestWriteCompressionDecisions(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t,
		putSpec{"pattern", SkinDefault, string(testutil.Repeat("abcd", 100000))},
		putSpec{"noise", SkinDefault, string(testutil.Random(3, 200))},
		putSpec{"empty", SkinDefault, ""},
	)

	t.Run("default config stores raw", func(t *testing.T) {
		t.Parallel()
		out, stats := writeAndRead(t, a)
		assert.Equal(t, 0, stats.Compressed)
		for _, e := range out.Entries() {
			assert.Equal(t, uint32(0), e.Header.CompressedSize, e.Path())
		}
	})

	t.Run("auto compresses only when smaller", func(t *testing.T) {
		t.Parallel()
		out, stats := writeAndRead(t, a, SaveWithCompressionLevel(CompressionLevelAuto))
		assert.Equal(t, 1, stats.Compressed)
		assert.Equal(t, int64(400200), stats.RawBytes)

		pattern := out.Entry(0)
		assert.NotZero(t, pattern.Header.CompressedSize)
		assert.Less(t, pattern.Header.CompressedSize, uint32(1000))
		assert.Equal(t, uint32(400000), pattern.Header.DecompressedSize)

		noise := out.Entry(1)
		assert.Equal(t, uint32(0), noise.Header.CompressedSize)
		assert.Equal(t, uint32(200), noise.Header.DecompressedSize)
		assert.Equal(t, uint32(0), out.Entry(2).Header.CompressedSize)
	})

	t.Run("negative levels disable compression", func(t *testing.T) {
		t.Parallel()
		_, stats := writeAndRead(t, a, SaveWithCompressionLevel(-5))
		assert.Equal(t, 0, stats.Compressed)
	})
}

func TestCompressionLevelEffort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level, want int
	}{
		{CompressionLevelAuto, DefaultCompressionLevel},
		{0, 0},
		{-2, 0},
		{1, 1},
		{32, 32},
	}
	for _, tt := range tests {
		cfg := newSaveConfig([]SaveOption{SaveWithCompressionLevel(tt.level)})
		assert.Equal(t, tt.want, cfg.effort(), "level %d", tt.level)
	}
}

func TestWriteSkipAlreadyCompressed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	raw := testutil.Repeat("hello world ", 500)
	compressed, err := RawBytes{Data: raw}.ToCompressed(ctx, 0, 0)
	require.NoError(t, err)
	require.True(t, compressed.IsCompressed())
	stream := compressed.(CompressedBytes).Data

	a := New()
	_, err = a.PutEntry(-1, "c.txt", compressed, SkinDefault)
	require.NoError(t, err)

	t.Run("skip copies stream", func(t *testing.T) {
		t.Parallel()
		var calls int
		out, stats := writeAndRead(t, a,
			SaveWithSkipAlreadyCompressed(true),
			SaveWithCompressionLevel(CompressionLevelAuto),
			withCompressor(func(context.Context, []byte, int, int, int) ([]byte, error) {
				calls++
				return nil, errors.New("unexpected")
			}),
		)
		assert.Equal(t, 0, calls)
		assert.Equal(t, 1, stats.PassedThrough)

		e := out.Entry(0)
		assert.Equal(t, uint32(len(stream)), e.Header.CompressedSize)
		assert.Equal(t, uint32(len(raw)), e.Header.DecompressedSize)
		got, ok := e.Source().(CompressedBytes)
		require.True(t, ok)
		assert.Equal(t, stream, got.Data)
		assert.Equal(t, crc.Checksum(DefaultHashParams(), stream), e.Header.Hash)
	})

	t.Run("without skip decodes and stores raw", func(t *testing.T) {
		t.Parallel()
		out, stats := writeAndRead(t, a)
		assert.Equal(t, 0, stats.PassedThrough)
		assert.Equal(t, uint32(0), out.Entry(0).Header.CompressedSize)
		assert.Equal(t, string(raw), rawString(t, out.Entry(0)))
	})
}

func TestWriteSkipAlreadyCompressedKeepsParsedHeader(t *testing.T) {
	t.Parallel()

	raw := testutil.Repeat("strm ", 400)
	compressed, err := RawBytes{Data: raw}.ToCompressed(context.Background(), 0, 0)
	require.NoError(t, err)
	stream := compressed.(CompressedBytes).Data
	loose := []byte("loose payload")

	input := testutil.BuildArchive(t, []testutil.TestEntry{
		{
			CompressedSize:   uint32(len(stream)),
			DecompressedSize: uint32(len(raw)),
			Hash:             0x12345678,
			Unknown:          7,
			SkinFlag:         int16(SkinAltA),
			InnerPath:        "tex/hero.dds",
			Payload:          stream,
		},
		{
			DecompressedSize: uint32(len(loose)),
			Hash:             crc.Checksum(DefaultHashParams(), loose),
			Unknown:          7,
			InnerPath:        "notes.txt",
			Payload:          loose,
		},
	})
	a, err := Read(bytes.NewReader(input))
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := a.Write(context.Background(), &buf, SaveWithSkipAlreadyCompressed(true))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PassedThrough)
	assert.Equal(t, input, buf.Bytes())

	// A replaced compressed source gets a fresh hash.
	_, err = a.PutEntry(-1, "tex/hero.dds", compressed, SkinAltA)
	require.NoError(t, err)
	out, _ := writeAndRead(t, a, SaveWithSkipAlreadyCompressed(true))
	assert.Equal(t, crc.Checksum(DefaultHashParams(), stream), out.Entry(0).Header.Hash)
}

func TestWriteXMLTranscoding(t *testing.T) {
	t.Parallel()

	doc := "\xef\xbb\xbf \r\n<?xml version=\"1.0\"?><root/>"
	a := newTestArchive(t,
		putSpec{"data/config.xml", SkinDefault, doc},
		putSpec{"data/notes.txt", SkinDefault, "plain <?xml later"},
	)
	packed := XMLTranscoderFunc(func(b []byte) ([]byte, error) {
		return []byte("BXML"), nil
	})

	t.Run("transcodes xml", func(t *testing.T) {
		t.Parallel()
		out, stats := writeAndRead(t, a, SaveWithXMLTranscoder(packed))
		assert.Equal(t, 1, stats.Transcoded)
		assert.Equal(t, "BXML", rawString(t, out.Entry(0)))
		assert.Equal(t, "plain <?xml later", rawString(t, out.Entry(1)))
	})

	t.Run("preserve keeps text", func(t *testing.T) {
		t.Parallel()
		out, stats := writeAndRead(t, a, SaveWithXMLTranscoder(packed), SaveWithPreserveXML(true))
		assert.Equal(t, 0, stats.Transcoded)
		assert.Equal(t, doc, rawString(t, out.Entry(0)))
	})

	t.Run("no transcoder keeps text", func(t *testing.T) {
		t.Parallel()
		out, _ := writeAndRead(t, a)
		assert.Equal(t, doc, rawString(t, out.Entry(0)))
	})

	t.Run("transcoder error fails save", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("bad xml")
		_, err := a.Write(context.Background(), &bytes.Buffer{}, SaveWithXMLTranscoder(XMLTranscoderFunc(func([]byte) ([]byte, error) {
			return nil, boom
		})))
		assert.ErrorIs(t, err, boom)
	})
}

func TestIsXMLDocument(t *testing.T) {
	t.Parallel()

	assert.True(t, isXMLDocument([]byte(`<?xml version="1.0"?>`)))
	assert.True(t, isXMLDocument([]byte("\xef\xbb\xbf<?xml")))
	assert.True(t, isXMLDocument([]byte("\n\t <?xml")))
	assert.False(t, isXMLDocument([]byte("<root/>")))
	assert.False(t, isXMLDocument([]byte("x<?xml")))
	assert.False(t, isXMLDocument(nil))
}

func TestWriteCompressionFallback(t *testing.T) {
	t.Parallel()

	data := string(testutil.Repeat("abcd", 1000))
	a := newTestArchive(t,
		putSpec{"a", SkinDefault, data},
		putSpec{"b", SkinDefault, data},
	)

	out, stats := writeAndRead(t, a,
		SaveWithCompressionLevel(CompressionLevelAuto),
		withCompressor(func(context.Context, []byte, int, int, int) ([]byte, error) {
			return nil, errors.New("encoder exploded")
		}),
	)
	assert.Equal(t, 2, stats.CompressionFallbacks)
	for _, e := range out.Entries() {
		assert.Equal(t, uint32(0), e.Header.CompressedSize)
		assert.Equal(t, data, rawString(t, e))
	}
}

func TestWriteCompressorContextErrorFails(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t, putSpec{"a", SkinDefault, string(testutil.Repeat("ab", 100))})
	_, err := a.Write(context.Background(), &bytes.Buffer{},
		SaveWithCompressionLevel(1),
		withCompressor(func(context.Context, []byte, int, int, int) ([]byte, error) {
			return nil, context.DeadlineExceeded
		}),
	)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteDecodeErrorFails(t *testing.T) {
	t.Parallel()

	a := New()
	_, err := a.PutEntry(-1, "bad", CompressedBytes{Data: []byte{0x40, 0x00}, RawLength: 3}, SkinDefault)
	require.NoError(t, err)

	_, err = a.Write(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWriteProgress(t *testing.T) {
	t.Parallel()

	a := newTestArchive(t,
		putSpec{"a", SkinDefault, string(testutil.Repeat("a", 100))},
		putSpec{"b", SkinDefault, "b"},
	)
	var stages []ProgressStage
	_, err := a.Write(context.Background(), &bytes.Buffer{},
		SaveWithCompressionLevel(CompressionLevelAuto),
		SaveWithProgress(func(ev ProgressEvent) {
			stages = append(stages, ev.Stage)
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []ProgressStage{StageCompressing, StageWriting, StageCompressing, StageWriting}, stages)
}

func TestWriteCustomHashParams(t *testing.T) {
	t.Parallel()

	params := crc.Params{Seed: 0x1234, Poly: 0x82f63b78}
	a := New(WithHashParams(params.Seed, params.Poly))
	_, err := a.PutEntry(-1, "a", RawBytes{Data: []byte("payload")}, SkinDefault)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = a.Write(context.Background(), &buf)
	require.NoError(t, err)

	out, err := Read(&buf, WithHashParams(params.Seed, params.Poly))
	require.NoError(t, err)
	assert.Equal(t, crc.Checksum(params, []byte("payload")), out.Entry(0).Header.Hash)
	assert.NoError(t, out.Verify(context.Background()))
}

func TestSaveAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "assets.strm")
	require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o600))

	a := newTestArchive(t, putSpec{"a", SkinDefault, "a"}, putSpec{"b", SkinDefault, "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Save(ctx, dest)
	require.ErrorIs(t, err, context.Canceled)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(got))
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = a.Save(context.Background(), dest)
	require.NoError(t, err)
	out, err := Open(dest)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 2, out.Len())
	files, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSaveOverOpenedArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "assets.strm")
	a := newTestArchive(t,
		putSpec{"big", SkinDefault, string(testutil.Text(2, 8192))},
		putSpec{"small", SkinDefault, "small"},
	)
	_, err := a.Save(context.Background(), dest)
	require.NoError(t, err)

	opened, err := Open(dest, WithEagerThreshold(1024))
	require.NoError(t, err)
	defer opened.Close()
	_, err = opened.PutEntry(-1, "added", RawBytes{Data: []byte("new")}, SkinAltA)
	require.NoError(t, err)

	_, err = opened.Save(context.Background(), dest, SaveWithCompressionLevel(CompressionLevelAuto))
	require.NoError(t, err)

	reread, err := Open(dest)
	require.NoError(t, err)
	defer reread.Close()
	require.Equal(t, 3, reread.Len())
	assert.Equal(t, string(testutil.Text(2, 8192)), rawString(t, reread.Entry(0)))
	assert.Equal(t, "new", rawString(t, reread.Entry(2)))
	assert.NoError(t, reread.Verify(context.Background()))
}
