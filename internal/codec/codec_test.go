package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbhash/internal/corpus"
	"fbhash/internal/domain"
)

var allOptions = []Options{
	{Encoding: EncodingCBOR, Compression: CompressionNone},
	{Encoding: EncodingCBOR, Compression: CompressionLZ4},
	{Encoding: EncodingCBOR, Compression: CompressionZstd},
	{Encoding: EncodingJSON},
}

func name(o Options) string { return o.Encoding.String() + "/" + o.Compression.String() }

func testModel(t *testing.T) *corpus.Model {
	t.Helper()
	var entries []corpus.DFEntry
	for i := uint64(0); i < 500; i++ {
		entries = append(entries, corpus.DFEntry{ID: domain.ChunkID(i * 7919), DF: 1 + i%10})
	}
	entries = append(entries, corpus.DFEntry{ID: math.MaxUint64, DF: 10})
	m, err := corpus.NewModel(domain.DefaultScheme(), 10, entries)
	require.NoError(t, err)
	return m
}

func testDigest() domain.Digest {
	return domain.Digest{
		Scheme: domain.DefaultScheme(),
		Model:  "abc123",
		Entries: []domain.Entry{
			{ID: 1, Weight: 0.6},
			{ID: 1 << 62, Weight: 0.48},
			{ID: math.MaxUint64, Weight: 0.64},
		},
	}
}

func TestModel_RoundTrip(t *testing.T) {
	m := testModel(t)
	for _, opts := range allOptions {
		t.Run(name(opts), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeModel(&buf, m, opts))
			got, err := DecodeModel(&buf)
			require.NoError(t, err)
			assert.Equal(t, m.Scheme(), got.Scheme())
			assert.Equal(t, m.N(), got.N())
			assert.Equal(t, m.Entries(), got.Entries())
			assert.Equal(t, m.ID(), got.ID())
		})
	}
}

func TestModel_Deterministic(t *testing.T) {
	for _, opts := range allOptions {
		var a, b bytes.Buffer
		require.NoError(t, EncodeModel(&a, testModel(t), opts))
		require.NoError(t, EncodeModel(&b, testModel(t), opts))
		assert.Equal(t, a.Bytes(), b.Bytes(), name(opts))
	}
}

func TestDigest_RoundTrip(t *testing.T) {
	d := testDigest()
	for _, opts := range allOptions {
		t.Run(name(opts), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeDigest(&buf, d, opts))
			got, err := DecodeDigest(&buf)
			require.NoError(t, err)
			assert.Equal(t, d, got)
		})
	}
}

func TestDigest_EmptyRoundTrip(t *testing.T) {
	d := domain.Digest{Scheme: domain.DefaultScheme(), Model: "m"}
	for _, opts := range allOptions {
		var buf bytes.Buffer
		require.NoError(t, EncodeDigest(&buf, d, opts))
		got, err := DecodeDigest(&buf)
		require.NoError(t, err)
		assert.True(t, got.Empty())
		assert.Equal(t, d.Model, got.Model)
	}
}

func TestDigest_WeightsAreFullWidth(t *testing.T) {
	d := domain.Digest{Scheme: domain.DefaultScheme(), Model: "m", Entries: []domain.Entry{{ID: 2, Weight: 1}}}
	var buf bytes.Buffer
	require.NoError(t, EncodeDigest(&buf, d, Options{}))
	// 0xfb introduces a float64; 1.0 would shrink to a float16 otherwise
	assert.Contains(t, string(buf.Bytes()), string([]byte{0xfb, 0x3f, 0xf0, 0, 0, 0, 0, 0, 0}))
}

func TestDatabase_RoundTrip(t *testing.T) {
	d := testDigest()
	db := Database{
		Scheme: d.Scheme,
		Model:  d.Model,
		Records: []domain.Record{
			{Path: "a/one.bin", Digest: d},
			{Path: "a/two.bin", Digest: domain.Digest{Scheme: d.Scheme, Model: d.Model}},
		},
	}
	for _, opts := range allOptions {
		t.Run(name(opts), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeDatabase(&buf, db, opts))
			got, err := DecodeDatabase(&buf)
			require.NoError(t, err)
			assert.Equal(t, db.Scheme, got.Scheme)
			assert.Equal(t, db.Model, got.Model)
			require.Len(t, got.Records, 2)
			assert.Equal(t, db.Records[0], got.Records[0])
			assert.True(t, got.Records[1].Digest.Empty())
		})
	}
}

func TestDatabase_RejectsForeignRecord(t *testing.T) {
	d := testDigest()
	other := d
	other.Model = "other"
	db := Database{Scheme: d.Scheme, Model: d.Model, Records: []domain.Record{{Path: "x", Digest: other}}}
	err := EncodeDatabase(&bytes.Buffer{}, db, Options{})
	assert.ErrorIs(t, err, domain.ErrCompatibility)
}

func TestDecode_WrongKind(t *testing.T) {
	for _, opts := range allOptions {
		var buf bytes.Buffer
		require.NoError(t, EncodeDigest(&buf, testDigest(), opts))
		_, err := DecodeModel(&buf)
		assert.ErrorIs(t, err, domain.ErrFormat, name(opts))
	}
}

func TestDecode_Corruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeDigest(&buf, testDigest(), Options{}))
	valid := buf.Bytes()

	mutate := func(f func(b []byte) []byte) []byte {
		return f(bytes.Clone(valid))
	}
	// announce a payload far larger than the body could expand to
	oversized := func(tag Compression, body []byte) []byte {
		b := append(bytes.Clone(valid[:headerSize]), body...)
		b[5] = byte(tag)
		binary.BigEndian.PutUint64(b[6:14], 1<<29)
		return b
	}
	var zbuf bytes.Buffer
	require.NoError(t, EncodeDigest(&zbuf, testDigest(), Options{Compression: CompressionZstd}))
	zframe := zbuf.Bytes()[headerSize:]

	tests := map[string][]byte{
		"empty":         {},
		"short":         valid[:5],
		"bad magic":     mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad version":   mutate(func(b []byte) []byte { b[4] = 9; return b }),
		"bad tag":       mutate(func(b []byte) []byte { b[5] = 7; return b }),
		"truncated":     valid[:len(valid)-3],
		"trailing byte": append(bytes.Clone(valid), 0),
		"huge size": mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint64(b[6:14], 1<<40)
			return b
		}),
		"oversized none": oversized(CompressionNone, valid[headerSize:]),
		"oversized lz4":  oversized(CompressionLZ4, valid[headerSize:]),
		"oversized zstd": oversized(CompressionZstd, zframe),
		"zstd garbage":   oversized(CompressionZstd, valid[headerSize:]),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDigest(bytes.NewReader(data))
			assert.ErrorIs(t, err, domain.ErrFormat)
		})
	}
}

func TestDecode_InvalidContent(t *testing.T) {
	tests := map[string]string{
		"unsorted ids":    `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":[2,1],"weights":[0.6,0.8]}}}`,
		"zero weight":     `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":[1,2],"weights":[1,0]}}}`,
		"not normalized":  `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":[1,2],"weights":[0.5,0.5]}}}`,
		"length mismatch": `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":[1],"weights":[0.6,0.8]}}}`,
		"bad scheme":      `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:sha1:64:raw:rare","model":"m","vector":{"ids":[],"weights":[]}}}`,
		"bad version":     `{"kind":"digest","version":2,"payload":{}}`,
		"unknown field":   `{"kind":"digest","version":1,"payload":{"extra":1}}`,
		"not json":        `{"kind":`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDigest(strings.NewReader(doc))
			assert.ErrorIs(t, err, domain.ErrFormat)
		})
	}
}

func TestDecodeModel_InvalidDF(t *testing.T) {
	doc := `{"kind":"model","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","n":2,"ids":[1,2],"df":[1,3]}}`
	_, err := DecodeModel(strings.NewReader(doc))
	assert.ErrorIs(t, err, domain.ErrFormat)
}

func TestDecodeModel_NoFiles(t *testing.T) {
	doc := `{"kind":"model","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","n":0,"ids":[],"df":[]}}`
	_, err := DecodeModel(strings.NewReader(doc))
	assert.ErrorIs(t, err, domain.ErrFormat)
}

func TestJSON_ChunkIDsAreStrings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeModel(&buf, testModel(t), Options{Encoding: EncodingJSON}))
	assert.Contains(t, buf.String(), `"18446744073709551615"`)
	got, err := DecodeModel(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.DF(math.MaxUint64))

	buf.Reset()
	require.NoError(t, EncodeDigest(&buf, testDigest(), Options{Encoding: EncodingJSON}))
	assert.Contains(t, buf.String(), `"ids":["1","4611686018427387904","18446744073709551615"]`)

	numeric := `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":[1,"2"],"weights":[0.6,0.8]}}}`
	d, err := DecodeDigest(strings.NewReader(numeric))
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkID(2), d.Entries[1].ID)

	bad := `{"kind":"digest","version":1,"payload":{"scheme":"fbhash/1:rabin:64:raw:rare","model":"m","vector":{"ids":["x"],"weights":[1]}}}`
	_, err = DecodeDigest(strings.NewReader(bad))
	assert.ErrorIs(t, err, domain.ErrFormat)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	m := testModel(t)
	modelPath := filepath.Join(dir, "nested", "model.fbm")
	require.NoError(t, WriteModelFile(modelPath, m, Options{Compression: CompressionZstd}))
	got, err := ReadModelFile(modelPath)
	require.NoError(t, err)
	assert.Equal(t, m.ID(), got.ID())

	digestPath := filepath.Join(dir, "a.fbd")
	require.NoError(t, WriteDigestFile(digestPath, testDigest(), Options{}))
	d, err := ReadDigestFile(digestPath)
	require.NoError(t, err)
	assert.Equal(t, testDigest(), d)

	dbPath := filepath.Join(dir, "db.fbdb")
	require.NoError(t, WriteDatabaseFile(dbPath, Database{Scheme: domain.DefaultScheme(), Model: "m"}, Options{}))
	db, err := ReadDatabaseFile(dbPath)
	require.NoError(t, err)
	assert.Empty(t, db.Records)

	_, err = ReadDigestFile(filepath.Join(dir, "missing.fbd"))
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestParseOptions(t *testing.T) {
	c, err := ParseCompression("lz4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)
	_, err = ParseCompression("brotli")
	assert.Error(t, err)

	e, err := ParseEncoding("json")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, e)
	_, err = ParseEncoding("xml")
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	for _, opts := range allOptions {
		t.Run(name(opts), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeDigest(&buf, testDigest(), opts))
			kind, err := Detect(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, KindDigest, kind)

			buf.Reset()
			require.NoError(t, EncodeModel(&buf, testModel(t), opts))
			kind, err = Detect(buf.Bytes())
			require.NoError(t, err)
			assert.Equal(t, KindModel, kind)
		})
	}

	path := filepath.Join(t.TempDir(), "db.fbdb")
	require.NoError(t, WriteDatabaseFile(path, Database{Scheme: domain.DefaultScheme(), Model: "m"}, Options{}))
	kind, err := DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, KindDatabase, kind)

	for _, bad := range []string{"", "FB", "NOPE0000000000", `{"kind":"vector"}`, "{"} {
		_, err := Detect([]byte(bad))
		assert.ErrorIs(t, err, domain.ErrFormat, bad)
	}
}
