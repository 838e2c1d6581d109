package entry

import (
	"context"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/rbaliyan/config/codec"
)

// cborCodec stores values as CBOR (RFC 8949). Maps decode to map[string]any.
type cborCodec struct {
	dec cbor.DecMode
}

var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// CBOR returns a codec for entries whose values are CBOR documents.
func CBOR() codec.Codec {
	return cborCodec{dec: cborDecMode}
}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Encode(_ context.Context, v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c cborCodec) Decode(_ context.Context, data []byte, v any) error {
	return c.dec.Unmarshal(data, v)
}
