package codec

import "github.com/abhissng/conduit/utils/types"

// supported codecs
const (
	JSON        types.CodecType = "json"
	MessagePack types.CodecType = "msgpack"
)
