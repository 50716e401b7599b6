// Package serializer turns a common.Message into bytes and back. Nodes and
// clients of one cluster must use the same serializer.
//
// Key Components:
//
//   - IRPCSerializer: the interface every codec implements. Deserialize
//     always starts from an empty Message, so a Message value can be reused.
//
//   - binarySerializerImpl: flag based format. A message starts with the
//     type byte and a uint16 of presence flags, followed by the present fields
//     only. Strings are length prefixed (uint32), the version tag is the
//     origin request id plus a uint64 sequence number and chain links are a
//     count followed by name/neighbour pairs (an empty neighbour means none).
//     The verified and found flags carry no payload.
//
//   - jsonSerializerImpl: the JSON objects of the wire protocol, e.g.
//     {"type":"SET","key":"x","val":"1","request_id":"c-1"}. Readable, so it
//     is the format of choice when debugging a cluster.
//
//   - gobSerializerImpl: Go's gob encoding. Every message carries its type
//     description, which makes it the largest and slowest of the three.
//
// Thread Safety:
//
//	All implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewGetRequest("x"))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(respData, &resp)
package serializer
