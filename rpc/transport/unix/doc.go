// Package unix connects nodes on the same machine through Unix domain
// sockets, e.g. a local test cluster started with the cluster command.
//
// Only the connectors live here: dialing a socket file, creating the
// listener (a stale socket file is removed first) and setting the socket
// buffer sizes. Framing, request correlation, redialing and buffer reuse
// come from the base package.
//
// Endpoints are socket paths, an optional unix:// prefix is accepted. The
// default read buffer is 64 KB.
package unix
