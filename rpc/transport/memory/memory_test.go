package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
)

func serve(t *testing.T, n *Network, endpoint string, handler func([]byte) []byte) func() {
	t.Helper()
	s := n.NewServerTransport()
	s.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() {
		done <- s.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: endpoint}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Await(ctx, endpoint); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	return func() {
		_ = s.Close()
		if err := <-done; err != nil {
			t.Errorf("listen returned error: %v", err)
		}
	}
}

func connect(t *testing.T, n *Network, endpoint string, timeout int) *clientTransport {
	t.Helper()
	c := n.NewClientTransport()
	err := c.Connect(common.ClientConfig{
		TimeoutSecond: timeout,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}},
	})
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return c.(*clientTransport)
}

func TestSendEcho(t *testing.T) {
	n := NewNetwork()
	stop := serve(t, n, "node-a", func(req []byte) []byte {
		return append([]byte("echo:"), req...)
	})
	defer stop()

	c := connect(t, n, "node-a", 0)
	req := []byte("hello")
	resp, err := c.Send(req)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(resp) != "echo:hello" {
		t.Errorf("unexpected response %q", resp)
	}
	if string(req) != "hello" {
		t.Error("request buffer must not be modified")
	}
}

func TestHandlerGetsCopy(t *testing.T) {
	n := NewNetwork()
	stop := serve(t, n, "node-a", func(req []byte) []byte {
		req[0] = 'X'
		return req
	})
	defer stop()

	c := connect(t, n, "node-a", 0)
	req := []byte("abc")
	if _, err := c.Send(req); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(req) != "abc" {
		t.Errorf("handler changed the caller's buffer: %q", req)
	}
}

func TestSendWithoutServer(t *testing.T) {
	c := connect(t, NewNetwork(), "nobody", 0)
	if _, err := c.Send([]byte("x")); err == nil {
		t.Error("expected error without server")
	}
}

func TestSendTimeout(t *testing.T) {
	n := NewNetwork()
	release := make(chan struct{})
	stop := serve(t, n, "slow", func(req []byte) []byte {
		<-release
		return req
	})
	defer stop()
	defer close(release)

	c := connect(t, n, "slow", 1)
	start := time.Now()
	if _, err := c.Send([]byte("x")); err == nil {
		t.Error("expected timeout")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout took too long")
	}
}

func TestEndpointInUse(t *testing.T) {
	n := NewNetwork()
	stop := serve(t, n, "node-a", func(req []byte) []byte { return req })
	defer stop()

	s := n.NewServerTransport()
	s.RegisterHandler(func(req []byte) []byte { return req })
	err := s.Listen(common.ServerConfig{Transport: common.ServerTransportConfig{Endpoint: "node-a"}})
	if err == nil {
		t.Error("expected error for endpoint in use")
	}
}

func TestRestartAfterClose(t *testing.T) {
	n := NewNetwork()
	stop := serve(t, n, "node-a", func(req []byte) []byte { return []byte("first") })
	stop()

	c := connect(t, n, "node-a", 0)
	if _, err := c.Send(nil); err == nil {
		t.Error("expected error after close")
	}

	stop = serve(t, n, "node-a", func(req []byte) []byte { return []byte("second") })
	defer stop()
	resp, err := c.Send(nil)
	if err != nil || string(resp) != "second" {
		t.Errorf("expected second server, got %q (%v)", resp, err)
	}
}

func TestConcurrentSends(t *testing.T) {
	n := NewNetwork()
	stop := serve(t, n, "node-a", func(req []byte) []byte { return req })
	defer stop()

	c := connect(t, n, "node-a", 5)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := []byte{byte(i)}
			resp, err := c.Send(want)
			if err != nil || len(resp) != 1 || resp[0] != byte(i) {
				t.Errorf("request %d: got %v (%v)", i, resp, err)
			}
		}(i)
	}
	wg.Wait()
}
