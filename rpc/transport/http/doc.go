// Package http implements an HTTP-based transport layer for the RPC system of
// the chain nodes. It provides concrete implementations of the transport
// interfaces defined in the parent package.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport, posting every request
//     to <endpoint>/rpc and using round-robin selection across endpoints. A bare
//     host:port endpoint is reached over plain http.
//
//   - httpServerTransport: Implements IRPCServerTransport with a chi router that
//     serves POST /rpc and a GET /health probe. Debug logging adds a middleware
//     that logs every request with its status code and duration.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
package http
