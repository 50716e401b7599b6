// Package rpc provides the communication layer of the chain nodes. Clients use
// it to reach any node of a cluster and nodes use it to forward writes, send
// acks and ask the authority for committed values.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP, in memory).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: The application client and the peer set a node uses to reach
//     the other members.
//
//   - server: The RPC server of one node, including the adapter that maps
//     messages to node operations and the metrics endpoint.
package rpc
