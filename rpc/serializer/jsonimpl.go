package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

// NewJSONSerializer creates a serializer producing the JSON objects of the
// wire protocol (type, key, val, request_id, ver, next_chain, ...)
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message as json: %w", msg.MsgType, err)
	}
	return data, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// json.Unmarshal keeps fields missing in the input
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("invalid json message: %w", err)
	}
	return nil
}
