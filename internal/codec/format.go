// Package codec reads and writes corpus models, digests and digest
// databases.
//
// Binary files start with a fixed header:
//
//	magic[4] | version uint8 | compression uint8 | size uint64 (big endian)
//
// followed by a deterministic CBOR payload of size bytes after
// decompression. JSON files hold a single object with "kind", "version" and
// "payload" fields and are recognized by their leading '{'. Chunk IDs in
// JSON payloads are decimal strings.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"fbhash/internal/domain"
)

// FormatVersion is the on-disk layout version.
const FormatVersion = 1

const headerSize = 4 + 1 + 1 + 8

// maxPayload bounds the size a header may announce.
const maxPayload = 1 << 30

// Kind identifies what a file contains.
type Kind string

const (
	KindModel    Kind = "model"
	KindDigest   Kind = "digest"
	KindDatabase Kind = "database"
)

var magics = map[Kind][4]byte{
	KindModel:    {'F', 'B', 'H', 'M'},
	KindDigest:   {'F', 'B', 'H', 'D'},
	KindDatabase: {'F', 'B', 'H', 'B'},
}

// Encoding selects the payload representation.
type Encoding uint8

const (
	EncodingCBOR Encoding = iota
	EncodingJSON
)

func (e Encoding) String() string {
	if e == EncodingJSON {
		return "json"
	}
	return "cbor"
}

// ParseEncoding converts a configuration name into an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "cbor", "binary", "":
		return EncodingCBOR, nil
	case "json":
		return EncodingJSON, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", name)
	}
}

// Options controls how files are written. Readers detect both settings.
type Options struct {
	Encoding    Encoding
	Compression Compression
}

type jsonEnvelope struct {
	Kind    Kind            `json:"kind"`
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

func encode(w io.Writer, kind Kind, payload any, opts Options) error {
	if opts.Encoding == EncodingJSON {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		return enc.Encode(jsonEnvelope{Kind: kind, Version: FormatVersion, Payload: raw})
	}

	raw, err := marshalCBOR(payload)
	if err != nil {
		return err
	}
	body, tag, err := compress(opts.Compression, raw)
	if err != nil {
		return err
	}
	var header [headerSize]byte
	magic := magics[kind]
	copy(header[:4], magic[:])
	header[4] = FormatVersion
	header[5] = byte(tag)
	binary.BigEndian.PutUint64(header[6:], uint64(len(raw)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func decode(r io.Reader, kind Kind, payload any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return decodeJSON(trimmed, kind, payload)
	}
	return decodeBinary(data, kind, payload)
}

func decodeJSON(data []byte, kind Kind, payload any) error {
	var env jsonEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return domain.Formatf("json envelope: %v", err)
	}
	if env.Kind != kind {
		return domain.Formatf("expected %s, found %q", kind, env.Kind)
	}
	if env.Version != FormatVersion {
		return domain.Formatf("unsupported format version %d", env.Version)
	}
	dec = json.NewDecoder(bytes.NewReader(env.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return domain.Formatf("json %s: %v", kind, err)
	}
	return nil
}

func decodeBinary(data []byte, kind Kind, payload any) error {
	if len(data) < headerSize {
		return domain.Formatf("file too short (%d bytes)", len(data))
	}
	var magic [4]byte
	copy(magic[:], data[:4])
	if magic != magics[kind] {
		for k, m := range magics {
			if m == magic {
				return domain.Formatf("expected %s, found %s", kind, k)
			}
		}
		return domain.Formatf("bad magic %q", magic[:])
	}
	if data[4] != FormatVersion {
		return domain.Formatf("unsupported format version %d", data[4])
	}
	size := binary.BigEndian.Uint64(data[6:headerSize])
	if size > maxPayload {
		return domain.Formatf("payload size %d too large", size)
	}
	raw, err := decompress(Compression(data[5]), data[headerSize:], int(size))
	if err != nil {
		return domain.Formatf("%s payload: %v", kind, err)
	}
	if err := unmarshalCBOR(raw, payload); err != nil {
		return domain.Formatf("cbor %s: %v", kind, err)
	}
	return nil
}

// Detect reports which kind of file data holds without decoding the payload.
func Detect(data []byte) (Kind, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env struct {
			Kind Kind `json:"kind"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return "", domain.Formatf("json envelope: %v", err)
		}
		if _, ok := magics[env.Kind]; !ok {
			return "", domain.Formatf("unknown kind %q", env.Kind)
		}
		return env.Kind, nil
	}
	if len(data) < 4 {
		return "", domain.Formatf("file too short (%d bytes)", len(data))
	}
	var magic [4]byte
	copy(magic[:], data[:4])
	for k, m := range magics {
		if m == magic {
			return k, nil
		}
	}
	return "", domain.Formatf("bad magic %q", magic[:])
}
