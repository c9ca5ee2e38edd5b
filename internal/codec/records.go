package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"fbhash/internal/corpus"
	"fbhash/internal/domain"
)

// normTolerance is how far a persisted digest's norm may drift from 1.
const normTolerance = 1e-6

// chunkIDs is written to JSON as decimal strings so readers that parse
// numbers as float64 keep full 64-bit precision. Plain numbers are
// accepted on input.
type chunkIDs []uint64

func (c chunkIDs) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, 2+len(c)*22)
	b = append(b, '[')
	for i, id := range c {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '"')
		b = strconv.AppendUint(b, id, 10)
		b = append(b, '"')
	}
	return append(b, ']'), nil
}

func (c *chunkIDs) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ids := make(chunkIDs, len(raw))
	for i, r := range raw {
		text := string(r)
		if len(r) > 0 && r[0] == '"' {
			if err := json.Unmarshal(r, &text); err != nil {
				return err
			}
		}
		id, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return fmt.Errorf("chunk id %s: %w", r, err)
		}
		ids[i] = id
	}
	*c = ids
	return nil
}

type modelRecord struct {
	Scheme string   `cbor:"1,keyasint" json:"scheme"`
	N      uint64   `cbor:"2,keyasint" json:"n"`
	IDs    chunkIDs `cbor:"3,keyasint" json:"ids"`
	DF     []uint64 `cbor:"4,keyasint" json:"df"`
}

type vectorRecord struct {
	IDs     chunkIDs  `cbor:"1,keyasint" json:"ids"`
	Weights []float64 `cbor:"2,keyasint" json:"weights"`
}

type digestRecord struct {
	Scheme string       `cbor:"1,keyasint" json:"scheme"`
	Model  string       `cbor:"2,keyasint" json:"model"`
	Vector vectorRecord `cbor:"3,keyasint" json:"vector"`
}

type namedRecord struct {
	Path   string       `cbor:"1,keyasint" json:"path"`
	Vector vectorRecord `cbor:"2,keyasint" json:"vector"`
}

type databaseRecord struct {
	Scheme  string        `cbor:"1,keyasint" json:"scheme"`
	Model   string        `cbor:"2,keyasint" json:"model"`
	Records []namedRecord `cbor:"3,keyasint" json:"records"`
}

// Database is a set of digests computed against one corpus model.
type Database struct {
	Scheme  domain.Scheme
	Model   string
	Records []domain.Record
}

// EncodeModel writes m to w.
func EncodeModel(w io.Writer, m *corpus.Model, opts Options) error {
	entries := m.Entries()
	rec := modelRecord{
		Scheme: m.Scheme().String(),
		N:      m.N(),
		IDs:    make(chunkIDs, len(entries)),
		DF:     make([]uint64, len(entries)),
	}
	for i, e := range entries {
		rec.IDs[i] = uint64(e.ID)
		rec.DF[i] = e.DF
	}
	return encode(w, KindModel, rec, opts)
}

// DecodeModel reads a model and checks every invariant.
func DecodeModel(r io.Reader) (*corpus.Model, error) {
	var rec modelRecord
	if err := decode(r, KindModel, &rec); err != nil {
		return nil, err
	}
	scheme, err := domain.ParseScheme(rec.Scheme)
	if err != nil {
		return nil, err
	}
	if len(rec.IDs) != len(rec.DF) {
		return nil, domain.Formatf("model has %d ids but %d frequencies", len(rec.IDs), len(rec.DF))
	}
	if err := checkAscending(rec.IDs); err != nil {
		return nil, err
	}
	entries := make([]corpus.DFEntry, len(rec.IDs))
	for i := range rec.IDs {
		entries[i] = corpus.DFEntry{ID: domain.ChunkID(rec.IDs[i]), DF: rec.DF[i]}
	}
	m, err := corpus.NewModel(scheme, rec.N, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFormat, err)
	}
	return m, nil
}

// EncodeDigest writes d to w.
func EncodeDigest(w io.Writer, d domain.Digest, opts Options) error {
	return encode(w, KindDigest, digestRecord{
		Scheme: d.Scheme.String(),
		Model:  d.Model,
		Vector: toVector(d.Entries),
	}, opts)
}

// DecodeDigest reads a digest and checks every invariant.
func DecodeDigest(r io.Reader) (domain.Digest, error) {
	var rec digestRecord
	if err := decode(r, KindDigest, &rec); err != nil {
		return domain.Digest{}, err
	}
	scheme, err := domain.ParseScheme(rec.Scheme)
	if err != nil {
		return domain.Digest{}, err
	}
	entries, err := fromVector(rec.Vector)
	if err != nil {
		return domain.Digest{}, err
	}
	return domain.Digest{Scheme: scheme, Model: rec.Model, Entries: entries}, nil
}

// EncodeDatabase writes db to w. Every record must carry the database's
// scheme and model.
func EncodeDatabase(w io.Writer, db Database, opts Options) error {
	rec := databaseRecord{
		Scheme:  db.Scheme.String(),
		Model:   db.Model,
		Records: make([]namedRecord, len(db.Records)),
	}
	for i, r := range db.Records {
		if r.Digest.Scheme != db.Scheme || r.Digest.Model != db.Model {
			return &domain.CompatibilityError{Field: "database record " + r.Path, Want: db.Model, Got: r.Digest.Model}
		}
		rec.Records[i] = namedRecord{Path: r.Path, Vector: toVector(r.Digest.Entries)}
	}
	return encode(w, KindDatabase, rec, opts)
}

// DecodeDatabase reads a digest database.
func DecodeDatabase(r io.Reader) (Database, error) {
	var rec databaseRecord
	if err := decode(r, KindDatabase, &rec); err != nil {
		return Database{}, err
	}
	scheme, err := domain.ParseScheme(rec.Scheme)
	if err != nil {
		return Database{}, err
	}
	db := Database{Scheme: scheme, Model: rec.Model, Records: make([]domain.Record, len(rec.Records))}
	seen := make(map[string]struct{}, len(rec.Records))
	for i, nr := range rec.Records {
		if _, dup := seen[nr.Path]; dup {
			return Database{}, domain.Formatf("duplicate record %q", nr.Path)
		}
		seen[nr.Path] = struct{}{}
		entries, err := fromVector(nr.Vector)
		if err != nil {
			return Database{}, fmt.Errorf("record %q: %w", nr.Path, err)
		}
		db.Records[i] = domain.Record{
			Path:   nr.Path,
			Digest: domain.Digest{Scheme: scheme, Model: rec.Model, Entries: entries},
		}
	}
	return db, nil
}

func toVector(entries []domain.Entry) vectorRecord {
	v := vectorRecord{IDs: make(chunkIDs, len(entries)), Weights: make([]float64, len(entries))}
	for i, e := range entries {
		v.IDs[i] = uint64(e.ID)
		v.Weights[i] = e.Weight
	}
	return v
}

func fromVector(v vectorRecord) ([]domain.Entry, error) {
	if len(v.IDs) != len(v.Weights) {
		return nil, domain.Formatf("digest has %d ids but %d weights", len(v.IDs), len(v.Weights))
	}
	if err := checkAscending(v.IDs); err != nil {
		return nil, err
	}
	if len(v.IDs) == 0 {
		return nil, nil
	}
	entries := make([]domain.Entry, len(v.IDs))
	sum := 0.0
	for i, w := range v.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, domain.Formatf("chunk %d has invalid weight %v", v.IDs[i], w)
		}
		entries[i] = domain.Entry{ID: domain.ChunkID(v.IDs[i]), Weight: w}
		sum += w * w
	}
	if norm := math.Sqrt(sum); math.Abs(norm-1) > normTolerance {
		return nil, domain.Formatf("digest norm %v is not 1", norm)
	}
	return entries, nil
}

func checkAscending(ids []uint64) error {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			return domain.Formatf("chunk ids not strictly ascending at index %d", i)
		}
	}
	return nil
}
