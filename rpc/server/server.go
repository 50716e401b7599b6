package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/ValentinKolb/dCRAQ/lib/chain"
	"github.com/ValentinKolb/dCRAQ/lib/node"
	"github.com/ValentinKolb/dCRAQ/lib/store/lstore"
	"github.com/ValentinKolb/dCRAQ/rpc/client"
	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/serializer"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server for one chain node.
// It takes a config, the server transport, the serializer and a factory for
// the client transports used to reach the other nodes.
//
// Usage:
//
//	s, err := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		tcp.NewTCPClientTransport,
//	)
//	if err != nil {
//		panic(err)
//	}
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	peerTransport transport.ClientTransportFactory,
) (*RPCServer, error) {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	var builder chain.Builder
	switch config.Mode {
	case common.ModeCRAQ:
		builder = chain.NewFixedBuilder(config.ChainOrder)
	case common.ModeStar:
		builder = chain.NewStarBuilder(config.ChainSeed)
	}

	peers := client.NewPeerSet(config, peerTransport, serializer)

	n, err := node.New(node.Config{
		Self:      config.NodeName,
		Authority: config.Authority,
		Members:   config.MemberNames(),
		Builder:   builder,
		Store:     lstore.NewLocalStore(),
	}, peers)
	if err != nil {
		_ = peers.Close()
		return nil, err
	}

	Logger.Infof("Created RPC Server for node %s", config.NodeName)
	Logger.Debugf(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		peers:      peers,
		node:       n,
		adapter:    NewNodeServerAdapter(n),
	}, nil
}

// RPCServer serves one chain node over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	peers      *client.PeerSet
	node       *node.Node
	adapter    IRPCServerAdapter

	mu         sync.Mutex
	metricsSrv *http.Server
	closeOnce  sync.Once
}

// Node returns the node served by this server
func (s *RPCServer) Node() *node.Node {
	return s.node
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(fmt.Errorf("failed to deserialize request: %s", err))
		} else {
			respMsg = s.adapter.Handle(context.Background(), &msg)
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(fmt.Errorf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// Serve starts the RPC server and blocks until it is closed.
// If a metrics endpoint is configured, /metrics and /health are served there.
func (s *RPCServer) Serve() error {
	s.registerTransportHandler()

	if s.config.MetricsEndpoint != "" {
		s.mu.Lock()
		s.metricsSrv = &http.Server{
			Addr:    s.config.MetricsEndpoint,
			Handler: s.metricsRouter(),
		}
		srv := s.metricsSrv
		s.mu.Unlock()

		go func() {
			Logger.Infof("Serving metrics on %s", s.config.MetricsEndpoint)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Errorf("metrics server failed: %v", err)
			}
		}()
	}

	Logger.Infof("Node %s is ready (mode %s, authority %s)", s.config.NodeName, s.config.Mode, s.config.Authority)
	return s.transport.Listen(s.config)
}

// Close stops the transport, the metrics endpoint and the node
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()

		s.mu.Lock()
		if s.metricsSrv != nil {
			if cerr := s.metricsSrv.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		s.mu.Unlock()

		if cerr := s.peers.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.node.Close()
	})
	return err
}

// metricsRouter serves the metrics of the node in the Prometheus text format
func (s *RPCServer) metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.node.Metrics().WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return r
}
