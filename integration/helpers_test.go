//go:build integration

package integration

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/strm"
)

// looseFile is one payload in a generated loose directory.
type looseFile struct {
	Record strm.MetadataRecord
	Data   []byte
}

// makeLooseDir writes count loose files plus a metadata sidecar under dir.
// Every third asset also gets an alternate costume variant.
func makeLooseDir(tb testing.TB, dir string, count, size int) []looseFile {
	tb.Helper()

	rng := rand.New(rand.NewPCG(uint64(count), uint64(size))) //nolint:gosec // test data
	var files []looseFile
	for i := range count {
		path := fmt.Sprintf("chara/c%03d/body.mdl", i)
		files = append(files, looseFile{
			Record: strm.MetadataRecord{InnerPath: path, SkinFlag: strm.SkinDefault, Unknown: 5},
			Data:   payload(rng, size),
		})
		if i%3 == 0 {
			files = append(files, looseFile{
				Record: strm.MetadataRecord{InnerPath: path, SkinFlag: strm.SkinAltA, Unknown: 5},
				Data:   payload(rng, size/2),
			})
		}
	}

	records := make([]strm.MetadataRecord, 0, len(files))
	for _, f := range files {
		name := filepath.Join(dir, filepath.FromSlash(strm.LooseFileName(f.Record.InnerPath, f.Record.SkinFlag)))
		require.NoError(tb, os.MkdirAll(filepath.Dir(name), 0o750))
		require.NoError(tb, os.WriteFile(name, f.Data, 0o600))
		records = append(records, f.Record)
	}

	meta, err := os.Create(filepath.Join(dir, strm.DefaultMetadataName))
	require.NoError(tb, err)
	require.NoError(tb, strm.WriteMetadata(meta, records))
	require.NoError(tb, meta.Close())
	return files
}

// payload mixes repeated phrases with noise.
func payload(rng *rand.Rand, size int) []byte {
	words := [][]byte{[]byte("joint "), []byte("weight "), []byte("uv "), {0, 0, 0x80, 0x3f}}
	out := make([]byte, 0, size)
	for len(out) < size {
		if rng.IntN(6) == 0 {
			out = append(out, byte(rng.Uint32()))
			continue
		}
		out = append(out, words[rng.IntN(len(words))]...)
	}
	return out[:size]
}

func readRaw(tb testing.TB, e *strm.Entry) []byte {
	tb.Helper()

	raw, err := e.Source().ReadRaw()
	require.NoError(tb, err)
	return raw
}
