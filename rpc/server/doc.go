// Package server implements the RPC server of one chain node. It decodes
// requests, hands them to the node and encodes the answers.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface for request handlers. NewNodeServerAdapter
//     validates a message against the fields its type requires and dispatches
//     SET, GET and ACK to the node. Every failure becomes an ERROR response
//     carrying the return code of the failure.
//
//   - RPCServer: Created by NewRPCServer from a common.ServerConfig. It builds
//     the chain builder of the configured mode (fixed chain for craq, one chain
//     per receiver for star), the peer set used to reach the other members and
//     the node itself. Serve blocks until Close is called.
//
//   - Metrics endpoint: if MetricsEndpoint is set, /metrics serves the counters
//     and gauges of the node in the Prometheus text format and /health answers
//     with 200.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  NodeName:   "a",
//	  Members:    map[string]string{"a": "10.0.0.1:9900", "b": "10.0.0.2:9900", "c": "10.0.0.3:9900"},
//	  Authority:  "c",
//	  Mode:       common.ModeCRAQ,
//	  ChainOrder: []string{"a", "b", "c"},
//	  Transport:  common.ServerTransportConfig{Endpoint: "0.0.0.0:9900"},
//	  TimeoutSecond: 5,
//	}
//
//	s, err := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  tcp.NewTCPClientTransport,
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	log.Fatal(s.Serve())
//
// Thread Safety:
//
//	Requests are handled concurrently. Serve must be called only once.
package server
