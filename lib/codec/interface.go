package codec

import "fmt"

// ICodec turns record values into the text stored in a db.KVDB and back.
//
// Values follow the JSON data model. Decode always produces the canonical Go
// representation: nil, bool, float64, string, []any and map[string]any.
type ICodec interface {
	// Name returns the name the codec is selected by
	Name() string
	// Encode serializes a value. It returns an error if the value has no JSON representation
	Encode(v any) ([]byte, error)
	// Decode deserializes data produced by Encode
	Decode(data []byte) (any, error)
}

const (
	NameJSONIter = "jsoniter"
	NameJSON     = "json"
)

// Default returns the codec used when none is configured.
func Default() ICodec {
	return NewJSONIterCodec()
}

// ByName returns the codec with the given name.
func ByName(name string) (ICodec, error) {
	switch name {
	case NameJSONIter, "":
		return NewJSONIterCodec(), nil
	case NameJSON:
		return NewJSONCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (expected one of: %s, %s)", name, NameJSONIter, NameJSON)
	}
}

// Normalize converts v into its canonical decoded form by encoding and decoding it.
// The result shares no memory with v.
func Normalize(c ICodec, v any) (any, error) {
	data, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}
