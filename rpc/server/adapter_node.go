package server

import (
	"context"

	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

// NewNodeServerAdapter creates an adapter that passes requests to n
func NewNodeServerAdapter(n ChainNode) IRPCServerAdapter {
	return &nodeServerAdapterImpl{node: n}
}

type nodeServerAdapterImpl struct {
	node ChainNode
}

func (adapter *nodeServerAdapterImpl) Handle(ctx context.Context, req *common.Message) *common.Message {
	// Check for nil node
	if adapter.node == nil {
		return common.NewErrorResponse(store.NewError(store.RetCInternalError, "handler: node is nil"))
	}

	// Reject requests missing the fields of their type
	if err := req.Validate(); err != nil {
		return common.NewErrorResponse(err)
	}

	switch req.MsgType {
	case common.MsgTSet:
		if err := adapter.node.Set(ctx, req.ToSetRequest()); err != nil {
			return common.NewErrorResponse(err)
		}
		return common.NewSetResponse()
	case common.MsgTGet:
		res, err := adapter.node.Get(ctx, req.Key)
		if err != nil {
			return common.NewErrorResponse(err)
		}
		return common.NewGetResponse(res)
	case common.MsgTAck:
		if err := adapter.node.Ack(ctx, req.ToAckRequest()); err != nil {
			return common.NewErrorResponse(err)
		}
		return common.NewAckResponse()
	default:
		return common.NewErrorResponse(
			store.Errorf(store.RetCProtocolViolation, "unsupported message type: %s", req.MsgType),
		)
	}
}
