// Package transport defines the interfaces and abstractions for RPC communication
// between clients and chain nodes, and between the nodes of a chain. It provides
// a common contract that all transport implementations must fulfill, enabling
// protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Enabling multiple transport implementations (HTTP, TCP, Unix sockets, in memory)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - ClientTransportFactory: Creates client transports, used by nodes to open one
//     transport per peer.
//
// Transports never retry. A failed send is reported to the caller, which decides
// what a failure means for the protocol.
package transport
