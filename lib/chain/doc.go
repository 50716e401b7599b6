// Package chain computes the replication chain a write travels through.
//
// A Chain is a doubly linked order of node names: SET messages walk the
// Next links from the head, ACK messages walk the Prev links back towards
// the head. Every node of the cluster appears exactly once.
//
// Two builders are provided:
//
//   - Fixed: the classic CRAQ topology. The chain is a configured static
//     order and the tail is the authority. Writes received by another node
//     are handed to the head, see Builder.Receiver.
//
//   - Star: the receiving node becomes the head and the other members
//     follow in a pseudo random order derived from a seed and the receiver
//     name. The authority (leader) is somewhere inside the chain.
//
// The chain is built exactly once per client write, by the first node that
// accepts it, and then travels unchanged with the SET and ACK messages.
package chain
