package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/store"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey       uint16 = 1 << 0
	hasValue     uint16 = 1 << 1
	hasRequestID uint16 = 1 << 2
	hasVersion   uint16 = 1 << 3
	hasNextChain uint16 = 1 << 4
	hasPrevChain uint16 = 1 << 5
	hasStatus    uint16 = 1 << 6
	hasVersionNo uint16 = 1 << 7
	hasErrorCode uint16 = 1 << 8
	isVerified   uint16 = 1 << 9 // no payload
	isFound      uint16 = 1 << 10
)

// headerSize is the message type byte followed by the uint16 flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16 = 0
	pos := headerSize

	if msg.Key != "" {
		flags |= hasKey
		pos = putString(result, pos, msg.Key)
	}
	if msg.Value != "" {
		flags |= hasValue
		pos = putString(result, pos, msg.Value)
	}
	if msg.RequestID != "" {
		flags |= hasRequestID
		pos = putString(result, pos, msg.RequestID)
	}
	if msg.Version != nil {
		flags |= hasVersion
		pos = putString(result, pos, msg.Version.RequestID)
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Version.Seq)
		pos += 8
	}
	if len(msg.NextChain) > 0 {
		flags |= hasNextChain
		pos = putLinks(result, pos, msg.NextChain)
	}
	if len(msg.PrevChain) > 0 {
		flags |= hasPrevChain
		pos = putLinks(result, pos, msg.PrevChain)
	}
	if msg.Status != "" {
		flags |= hasStatus
		pos = putString(result, pos, msg.Status)
	}
	if msg.VersionNo > 0 {
		flags |= hasVersionNo
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.VersionNo)
		pos += 8
	}
	if msg.ErrorCode > 0 {
		flags |= hasErrorCode
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.ErrorCode))
		pos += 8
	}
	if msg.Verified {
		flags |= isVerified
	}
	if msg.Found {
		flags |= isFound
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:headerSize], flags)

	return result[:pos], nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := reader{data: data, pos: headerSize}

	if flags&hasKey != 0 {
		msg.Key = r.string("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.string("value")
	}
	if flags&hasRequestID != 0 {
		msg.RequestID = r.string("request id")
	}
	if flags&hasVersion != 0 {
		v := store.VersionTag{}
		v.RequestID = r.string("version request id")
		v.Seq = r.uint64("version seq")
		msg.Version = &v
	}
	if flags&hasNextChain != 0 {
		msg.NextChain = r.links("next chain")
	}
	if flags&hasPrevChain != 0 {
		msg.PrevChain = r.links("prev chain")
	}
	if flags&hasStatus != 0 {
		msg.Status = r.string("status")
	}
	if flags&hasVersionNo != 0 {
		msg.VersionNo = r.uint64("version no")
	}
	if flags&hasErrorCode != 0 {
		msg.ErrorCode = store.RetCode(r.uint64("error code"))
	}
	msg.Verified = flags&isVerified != 0
	msg.Found = flags&isFound != 0

	return r.err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// sizeBytes returns an upper bound of the encoded size of msg
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	size += 4 + len(msg.Key)
	size += 4 + len(msg.Value)
	size += 4 + len(msg.RequestID)
	if msg.Version != nil {
		size += 4 + len(msg.Version.RequestID) + 8
	}
	size += linksSize(msg.NextChain)
	size += linksSize(msg.PrevChain)
	size += 4 + len(msg.Status)
	size += 8 // version no
	size += 8 // error code
	return size
}

func linksSize(links chain.Links) int {
	size := 4
	for k, v := range links {
		size += 4 + len(k) + 4 + len(v)
	}
	return size
}

// putString writes a length prefixed string and returns the new position
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(buf[pos:pos+len(s)], s)
	return pos + len(s)
}

// putLinks writes the number of links followed by name/neighbour pairs.
// A missing neighbour is written as the empty string.
func putLinks(buf []byte, pos int, links chain.Links) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(links)))
	pos += 4
	for k, v := range links {
		pos = putString(buf, pos, k)
		pos = putString(buf, pos, v)
	}
	return pos
}

// reader decodes fields sequentially, the first error stops all further reads
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *reader) uint32(field string) uint32 {
	if !r.need(4, field+" length") {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

func (r *reader) string(field string) string {
	n := int(r.uint32(field))
	if !r.need(n, field+" data") {
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}

func (r *reader) links(field string) chain.Links {
	n := int(r.uint32(field))
	if r.err != nil {
		return nil
	}
	// every link needs at least two length prefixes
	if !r.need(n*8, field+" data") {
		return nil
	}
	links := make(chain.Links, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.string(field + " name")
		v := r.string(field + " neighbour")
		links[k] = v
	}
	if r.err != nil {
		return nil
	}
	return links
}
