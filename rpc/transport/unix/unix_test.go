package unix

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dCRAQ/rpc/common"
	"github.com/ValentinKolb/dCRAQ/rpc/transport"
)

func startServer(t *testing.T, handler transport.ServerHandleFunc) (string, func()) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "rpc.sock")

	s := NewUnixServerTransport()
	s.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() {
		done <- s.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport: common.ServerTransportConfig{
				Endpoint:   socket,
				BufferSize: DefaultBufferSize,
			},
		})
	}()

	return socket, func() {
		_ = s.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("listen returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("listen did not return after close")
		}
	}
}

func connectClient(t *testing.T, socket string, conns int) transport.IRPCClientTransport {
	t.Helper()
	c := NewUnixClientTransport()
	cfg := common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{socket},
			ConnectionsPerEndpoint: conns,
		},
	}

	// the server starts listening asynchronously
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := c.Connect(cfg)
		if err == nil {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("connect failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRoundTrip(t *testing.T) {
	socket, stop := startServer(t, func(req []byte) []byte {
		return append([]byte("echo:"), req...)
	})
	defer stop()

	c := connectClient(t, socket, 1)
	defer c.Close()

	resp, err := c.Send([]byte("hello"))
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if string(resp) != "echo:hello" {
		t.Errorf("unexpected response %q", resp)
	}
}

func TestEmptyPayload(t *testing.T) {
	socket, stop := startServer(t, func(req []byte) []byte {
		return nil
	})
	defer stop()

	c := connectClient(t, socket, 1)
	defer c.Close()

	resp, err := c.Send(nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected empty response, got %q", resp)
	}
}

func TestLargePayload(t *testing.T) {
	socket, stop := startServer(t, func(req []byte) []byte {
		return req
	})
	defer stop()

	c := connectClient(t, socket, 1)
	defer c.Close()

	// larger than the pooled read buffer
	req := bytes.Repeat([]byte("x"), 2*DefaultBufferSize)
	resp, err := c.Send(req)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !bytes.Equal(req, resp) {
		t.Errorf("payload changed, got %d bytes", len(resp))
	}
}

func TestConcurrentRequests(t *testing.T) {
	// responses are delayed in reverse order to check response correlation
	socket, stop := startServer(t, func(req []byte) []byte {
		time.Sleep(time.Duration(100-int(req[0])) * time.Millisecond)
		return req
	})
	defer stop()

	c := connectClient(t, socket, 2)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Send([]byte{byte(i)})
			if err != nil {
				t.Errorf("request %d failed: %v", i, err)
				return
			}
			if len(resp) != 1 || resp[0] != byte(i) {
				t.Errorf("request %d got response %v", i, resp)
			}
		}(i)
	}
	wg.Wait()
}

func TestBlockingHandlersDoNotStall(t *testing.T) {
	// the first request only returns once the second one was handled
	release := make(chan struct{})
	socket, stop := startServer(t, func(req []byte) []byte {
		if string(req) == "wait" {
			<-release
		} else {
			close(release)
		}
		return req
	})
	defer stop()

	c := connectClient(t, socket, 1)
	defer c.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Send([]byte("wait"))
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)

	if _, err := c.Send([]byte("go")); err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
}

func TestSendAfterServerClosed(t *testing.T) {
	socket, stop := startServer(t, func(req []byte) []byte {
		return req
	})

	c := connectClient(t, socket, 1)
	defer c.Close()
	if _, err := c.Send([]byte("x")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	stop()

	var err error
	for i := 0; i < 3; i++ {
		if _, err = c.Send([]byte(fmt.Sprint(i))); err != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err == nil {
		t.Error("expected an error after the server closed")
	}
}

func TestSendAfterClientClosed(t *testing.T) {
	socket, stop := startServer(t, func(req []byte) []byte {
		return req
	})
	defer stop()

	c := connectClient(t, socket, 1)
	_ = c.Close()
	if _, err := c.Send([]byte("x")); err == nil {
		t.Error("expected error on closed transport")
	}
}
