package ingest

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype used by the sample ingestor
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ingest: CBOR encoder initialization failed: " + err.Error())
	}
	// Unknown fields are ignored so sources can add fields freely.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("ingest: CBOR decoder initialization failed: " + err.Error())
	}
	encoding.RegisterCodec(cborCodec{})
}

// cborCodec carries the plain Go message types over gRPC without
// generated protobuf code.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

func (cborCodec) Name() string {
	return CodecName
}
