package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abhissng/conduit/utils/types"
	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes data based on the codec type.
func Encode[T any](data T, codecType types.CodecType) ([]byte, error) {
	switch codecType {
	case JSON:
		return json.Marshal(data)
	case MessagePack:
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding format %q", codecType)
	}
}

// Decode deserializes data based on the codec type.
func Decode[T any](data []byte, codecType types.CodecType) (T, error) {
	var result T
	var err error

	switch codecType {
	case JSON:
		err = json.Unmarshal(data, &result)
	case MessagePack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		dec.UseLooseInterfaceDecoding(true)
		err = dec.Decode(&result)
	default:
		err = fmt.Errorf("unsupported decoding format %q", codecType)
	}

	return result, err
}

// DecodeInto deserializes data into an existing target.
func DecodeInto(data []byte, target any, codecType types.CodecType) error {
	switch codecType {
	case JSON:
		return json.Unmarshal(data, target)
	case MessagePack:
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		return dec.Decode(target)
	default:
		return fmt.Errorf("unsupported decoding format %q", codecType)
	}
}
