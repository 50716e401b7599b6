// Package node implements the replication engine: the SET, GET and ACK
// handlers every cluster member runs.
//
// Write path:
//
//	The first node to receive a client SET builds the chain (see package
//	chain) and attaches it to the request. Each node on the way either
//	assigns the version (the authority, under a per-key lock) or buffers
//	the write as pending, then forwards the request synchronously to its
//	successor. The last node of the chain answers and starts the ACK,
//	which travels back along the predecessors without anyone waiting for
//	it. Nodes receiving a verified ACK commit the buffered write through
//	their apply loop.
//
// Read path:
//
//	The authority and every node without pending writes for a key answer
//	from local state. A node with pending writes asks the authority and
//	commits the answer through its apply loop (apportioned queries).
//
// Authority placement:
//
//	In a fixed chain the authority is the tail, so every node sees the
//	assigned version only on the way back. In a star chain the authority
//	may sit anywhere: nodes before it buffer writes without version, nodes
//	behind it buffer writes with version. An ACK starting behind the
//	authority is unverified until it passes the authority, which commits
//	the write before stamping it verified. Nodes behind the authority never
//	see a verified ACK; their pending writes are pruned by the next commit
//	of a newer or equal version, typically the first read that falls back.
//
// Errors:
//
//	Malformed or out-of-protocol requests are rejected with a *store.Error
//	carrying RetCProtocolViolation before any state is touched. Peer
//	failures are returned wrapped; nothing is retried.
package node
