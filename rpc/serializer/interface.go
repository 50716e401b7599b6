package serializer

import "github.com/ValentinKolb/dCRAQ/rpc/common"

// IRPCSerializer is the interface for all Message Serializers.
// Implementations must be safe for concurrent use, the transports call them
// from one goroutine per request.
type IRPCSerializer interface {
	// Serialize encodes a Message into a byte slice
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields of msg that are not present in
	// b are reset, so a Message can be reused between calls.
	Deserialize(b []byte, msg *common.Message) error
}
