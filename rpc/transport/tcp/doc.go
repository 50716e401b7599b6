// Package tcp implements TCP socket-based transport for the RPC system of the
// chain nodes. It provides concrete implementations of the base package's
// connector interfaces for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse and response correlation. See the base package
// documentation for the framing and threading model.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both connectors apply the same socket options (no delay, buffer sizes,
// keep alive and linger) from common.SocketConf. DefaultBufferSize (512 KB) is a
// good read buffer size for typical workloads.
package tcp
