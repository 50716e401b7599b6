package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/node"
	"github.com/ValentinKolb/dCRAQ/lib/store"
)

// StatusOK is the status of every successful response
const StatusOK = "OK"

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"type"`

	// Request fields
	Key       string            `json:"key,omitempty"`        // Used for: Set, Get, Ack
	Value     string            `json:"val,omitempty"`        // Used for: Set, Ack (request), Get (response)
	RequestID string            `json:"request_id,omitempty"` // Used for: Set, Ack
	Version   *store.VersionTag `json:"ver,omitempty"`        // Used for: Set (once assigned), Ack, Get (response)
	NextChain chain.Links       `json:"next_chain,omitempty"` // Used for: Set (once the chain is built)
	PrevChain chain.Links       `json:"prev_chain,omitempty"` // Used for: Set (once the chain is built), Ack
	Verified  bool              `json:"tail_verif,omitempty"` // Used for: Ack

	// Response only fields
	Status    string        `json:"status,omitempty"`     // "OK" or the error message
	Found     bool          `json:"found,omitempty"`      // Used for: Get responses
	VersionNo uint64        `json:"version_no,omitempty"` // Used for: Get responses
	ErrorCode store.RetCode `json:"error_code,omitempty"` // Set for error responses
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request. Version and chain are only
// attached if present.
func NewSetRequest(req node.SetRequest) *Message {
	msg := &Message{
		MsgType:   MsgTSet,
		Key:       req.Key,
		Value:     req.Value,
		RequestID: req.RequestID,
	}
	if req.Version.Assigned() {
		v := req.Version
		msg.Version = &v
	}
	if !req.Chain.IsEmpty() {
		msg.NextChain = req.Chain.Next
		msg.PrevChain = req.Chain.Prev
	}
	return msg
}

// NewSetResponse creates a new Set response
func NewSetResponse() *Message {
	return &Message{
		MsgType: MsgTSet,
		Status:  StatusOK,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(res node.GetResult) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Status:  StatusOK,
		Found:   res.Found,
	}
	if res.Found {
		v := res.Version
		msg.Value = res.Value
		msg.Version = &v
		msg.VersionNo = res.Version.Seq
	}
	return msg
}

// NewAckRequest creates a new Ack request. Only the backward links of the
// chain travel with an ack.
func NewAckRequest(req node.AckRequest) *Message {
	v := req.Version
	return &Message{
		MsgType:   MsgTAck,
		Key:       req.Key,
		Value:     req.Value,
		RequestID: req.RequestID,
		Version:   &v,
		PrevChain: req.Chain.Prev,
		Verified:  req.Verified,
	}
}

// NewAckResponse creates a new Ack response
func NewAckResponse() *Message {
	return &Message{
		MsgType: MsgTAck,
		Status:  StatusOK,
	}
}

// NewErrorResponse creates a new Error response. The return code is taken
// from err if it is (or wraps) a *store.Error.
func NewErrorResponse(err error) *Message {
	code := store.RetCInternalError
	var serr *store.Error
	if errors.As(err, &serr) {
		code = serr.Code
	}
	return &Message{
		MsgType:   MsgTError,
		Status:    err.Error(),
		ErrorCode: code,
	}
}

// --------------------------------------------------------------------------
// Validation and Conversion
// --------------------------------------------------------------------------

// Validate checks that all fields required by the message type are present
func (m *Message) Validate() error {
	violation := func(format string, args ...any) error {
		return store.Errorf(store.RetCProtocolViolation, "%s request: %s", m.MsgType, fmt.Sprintf(format, args...))
	}

	switch m.MsgType {
	case MsgTSet:
		if m.RequestID == "" {
			return violation("missing request_id")
		}
		if (len(m.NextChain) == 0) != (len(m.PrevChain) == 0) {
			return violation("next_chain and prev_chain must be sent together")
		}
	case MsgTGet:
		// the empty key is a valid key
	case MsgTAck:
		if m.RequestID == "" {
			return violation("missing request_id")
		}
		if m.Version == nil || !m.Version.Assigned() {
			return violation("missing ver")
		}
		if len(m.PrevChain) == 0 {
			return violation("missing prev_chain")
		}
	default:
		return violation("unknown message type")
	}
	return nil
}

// IsOK reports whether the message is a successful response
func (m *Message) IsOK() bool {
	return m.MsgType != MsgTError && m.Status == StatusOK
}

// Err returns the error carried by a response, nil for successful responses
func (m *Message) Err() error {
	if m.IsOK() {
		return nil
	}
	code := m.ErrorCode
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	status := m.Status
	if status == "" {
		status = "empty status"
	}
	return store.NewError(code, status)
}

// ToSetRequest converts a Set message into the request type of the node
func (m *Message) ToSetRequest() node.SetRequest {
	req := node.SetRequest{
		Key:       m.Key,
		Value:     m.Value,
		RequestID: m.RequestID,
	}
	if m.Version != nil {
		req.Version = *m.Version
	}
	if len(m.NextChain) > 0 {
		req.Chain = chain.Chain{Next: m.NextChain, Prev: m.PrevChain}
	}
	return req
}

// ToAckRequest converts an Ack message into the request type of the node
func (m *Message) ToAckRequest() node.AckRequest {
	req := node.AckRequest{
		Key:       m.Key,
		Value:     m.Value,
		RequestID: m.RequestID,
		Verified:  m.Verified,
		Chain:     chain.FromPrev(m.PrevChain),
	}
	if m.Version != nil {
		req.Version = *m.Version
	}
	return req
}

// ToGetResult converts a Get response into the result type of the node
func (m *Message) ToGetResult() node.GetResult {
	res := node.GetResult{
		Found: m.Found,
		Value: m.Value,
	}
	if m.Version != nil {
		res.Version = *m.Version
	} else {
		res.Version = store.VersionTag{Seq: m.VersionNo}
	}
	return res
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTSet:
		return "SET"
	case MsgTGet:
		return "GET"
	case MsgTAck:
		return "ACK"
	case MsgTError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "SET":
		*t = MsgTSet
	case "GET":
		*t = MsgTGet
	case "ACK":
		*t = MsgTAck
	case "ERROR":
		*t = MsgTError
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	MsgTUnknown MessageType = iota
	MsgTError               // Indicates an error occurred

	MsgTSet // Write a key, travels down the chain
	MsgTGet // Read a key
	MsgTAck // Confirm a write, travels up the chain
)
