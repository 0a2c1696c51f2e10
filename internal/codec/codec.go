// Package codec provides the deterministic encodings used to persist
// revision payloads.
//
// Both codecs honour `json` struct tags, so a payload type declares its
// field names once regardless of the codec a model is registered with.
package codec

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"

	"github.com/roach88/revstore/internal/ir"
)

// Codec converts typed payloads to bytes and back.
// Implementations must be deterministic and side-effect free.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Names of the built-in codecs.
const (
	NameJSON = "json"
	NameCBOR = "cbor"
)

var (
	// JSON encodes payloads as compact JSON with goccy/go-json.
	JSON Codec = jsonCodec{}

	// CBOR encodes payloads with core deterministic CBOR encoding
	// (RFC 8949 section 4.2).
	CBOR Codec = newCBORCodec()
)

// ByName returns a built-in codec.
func ByName(name string) (Codec, error) {
	switch name {
	case "", NameJSON:
		return JSON, nil
	case NameCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return NameJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() cborCodec {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	enc, err := encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor encoder options: %v", err))
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: cbor decoder options: %v", err))
	}
	return cborCodec{enc: enc, dec: dec}
}

func (cborCodec) Name() string { return NameCBOR }

func (c cborCodec) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c cborCodec) Unmarshal(data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}

// Document decodes data into its generic form: maps, slices and scalars.
func Document(c Codec, data []byte) (any, error) {
	var doc any
	if err := c.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", c.Name(), err)
	}
	return doc, nil
}

// ToIR converts a typed payload into an IRValue by way of its JSON form,
// so field names follow `json` tags and custom marshalers are respected.
func ToIR(v any) (ir.IRValue, error) {
	data, err := JSON.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	out, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
