// Package common provides the data structures shared by the RPC packages:
// the wire message, the configuration of servers and clients and the logger
// setup.
//
// Key Components:
//
//   - Message: The single structure used for all requests and responses. Its
//     JSON names (type, key, val, request_id, ver, next_chain, prev_chain,
//     tail_verif, status, found, version_no) are the wire names of the
//     replication protocol. Validate checks the fields a message type needs.
//
//   - MessageType: SET, GET, ACK and ERROR.
//
//   - ServerConfig: Name, members, authority and chain mode of a node plus its
//     transport, timeout, metrics and logging settings.
//
//   - ClientConfig: Members, timeout and transport settings of a client.
//
//   - Logger: Custom formatting for dragonboat's logger package, used by every
//     package of the module. InitLoggers sets the level of all of them.
package common
