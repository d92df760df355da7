package bgpio_test

import (
	"net"
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/bgpio"
)

// loopbackPair returns two connected *net.TCPConn over 127.0.0.1, for
// exercising TCPConn/ReadLoop without a real BGP peer.
func loopbackPair(t *testing.T) (client, server *net.TCPConn) {
	t.Helper()

	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	acceptCh := make(chan *net.TCPConn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.AcceptTCP()
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptCh <- c
	}()

	cl, err := net.DialTCP("tcp", nil, ln.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	t.Cleanup(func() { _ = cl.Close() })

	select {
	case srv := <-acceptCh:
		t.Cleanup(func() { _ = srv.Close() })
		return cl, srv
	case err := <-acceptErrCh:
		t.Fatalf("AcceptTCP: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loopback accept")
	}
	return nil, nil
}

func TestTCPConnWriteAndAddrs(t *testing.T) {
	t.Parallel()

	client, server := loopbackPair(t)
	c := bgpio.NewTCPConnForTest(client)

	n, pending, err := c.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pending {
		t.Error("pending = true, want false for a synchronous kernel write")
	}
	if n != len("hello") {
		t.Errorf("n = %d, want %d", n, len("hello"))
	}

	buf := make([]byte, 5)
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := server.Read(buf); err != nil {
		t.Fatalf("server Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("received %q, want %q", buf, "hello")
	}

	if !c.LocalAddr().IsValid() {
		t.Error("LocalAddr() is not valid")
	}
	if !c.RemoteAddr().IsValid() {
		t.Error("RemoteAddr() is not valid")
	}
}

func TestTCPConnStopReading(t *testing.T) {
	t.Parallel()

	client, _ := loopbackPair(t)
	c := bgpio.NewTCPConnForTest(client)

	if c.ReadingStoppedForTest() {
		t.Error("readingStopped() = true before StopReading()")
	}
	c.StopReading()
	if !c.ReadingStoppedForTest() {
		t.Error("readingStopped() = false after StopReading()")
	}
}

func TestTCPConnClose(t *testing.T) {
	t.Parallel()

	client, _ := loopbackPair(t)
	c := bgpio.NewTCPConnForTest(client)

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := c.Write([]byte("x")); err == nil {
		t.Error("Write after Close returned nil error")
	}
}
