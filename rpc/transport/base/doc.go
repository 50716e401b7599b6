// Package base provides a foundation for stream transport layers of the chain
// nodes, implementing core functionality for RPC communication independent of the
// specific network protocol (TCP, Unix sockets, etc.). It serves as a base layer
// that can be extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Performance optimization through connection pooling and buffer reuse
//   - Frame-based message protocol with requestID tracking
//   - Asynchronous response correlation on multiplexed connections
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Broken connections are dialed again on the
//     next send, requests are never retried.
//
//   - serverTransport: Core server implementation that accepts connections and
//     passes every request frame to the registered handler.
//
// Frame Format:
//
//	8 bytes request id | 4 bytes payload length | payload
//
// The request id is only used to correlate responses on one connection, it has
// nothing to do with the request id of a write.
//
// Threading:
//
//	Every request is handled in its own goroutine unless WorkersPerConn limits
//	the number of concurrent requests per connection. Forwarding a write blocks
//	until the rest of the chain answered, so limits must be larger than the
//	number of concurrent writes passing through a node.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic operations
//	and mutexes to ensure concurrent access safety, while the server creates a
//	dedicated goroutine for each connection.
package base
