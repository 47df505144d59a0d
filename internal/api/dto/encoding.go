package dto

import (
	"github.com/fxamacker/cbor/v2"
)

// ContentTypeCBOR is the media type of CBOR responses.
const ContentTypeCBOR = "application/cbor"

// cborMode encodes with deterministic (canonical) map ordering so equal
// values always produce equal bytes.
var cborMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// MarshalCBOR encodes v as canonical CBOR. Struct fields use their json tag
// names as map keys.
func MarshalCBOR(v any) ([]byte, error) {
	return cborMode.Marshal(v)
}

// UnmarshalCBOR decodes CBOR produced by MarshalCBOR.
func UnmarshalCBOR(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
