// Package memory implements an in process transport. Servers register under
// their endpoint name on a Network and clients call the registered handler
// directly, copying request and response bytes as a real connection would.
//
// The transport is used by the local cluster command and by tests that run a
// whole chain inside one process. Network.Await lets callers wait until every
// node is listening before the first request is sent.
package memory
