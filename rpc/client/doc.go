// Package client implements the RPC clients of the chain nodes.
//
// Key Components:
//
//   - Client: Used by applications to read and write keys. Set and Get pick a
//     random member, SetAt and GetAt address a node by name. Each write gets a
//     request id made of the client id and a counter.
//
//   - PeerSet: Implements node.Peers, the way a node forwards writes, sends acks
//     and asks the authority for the committed value of a dirty key. Acks are
//     sent in the background, a failed ack is logged and dropped.
//
// Both keep one transport per node, opened on the first request to that node.
// Transport failures and timeouts are reported as *store.Error with the code
// store.RetCTransportFailure, error responses keep the code sent by the node.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Members:       map[string]string{"a": "localhost:9900", "b": "localhost:9901"},
//	  TimeoutSecond: 5,
//	}
//	c, _ := client.NewClient("", config, tcp.NewTCPClientTransport, serializer.NewBinarySerializer())
//	defer c.Close()
//
//	_ = c.Set(ctx, "mykey", "myvalue")
//	value, found, _ := c.Get(ctx, "mykey")
//
// Thread Safety:
//
//	Client and PeerSet are safe for concurrent use.
package client
