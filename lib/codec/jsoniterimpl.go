package codec

import (
	jsoniter "github.com/json-iterator/go"
)

// NewJSONIterCodec creates a new codec using json-iterator in standard library compatible mode
func NewJSONIterCodec() ICodec {
	return &jsonIterCodecImpl{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

// jsonIterCodecImpl implements the ICodec interface using json-iterator
type jsonIterCodecImpl struct {
	api jsoniter.API
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j *jsonIterCodecImpl) Name() string {
	return NameJSONIter
}

func (j *jsonIterCodecImpl) Encode(v any) ([]byte, error) {
	return j.api.Marshal(v)
}

func (j *jsonIterCodecImpl) Decode(data []byte) (any, error) {
	var v any
	if err := j.api.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
