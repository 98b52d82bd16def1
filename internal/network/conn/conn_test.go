package conn

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/relaychat-go/internal/network"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

func pipePair() (*LineConn, *LineConn) {
	a, b := net.Pipe()
	return NewLineConn(a, nil), NewLineConn(b, nil)
}

func TestLineConnReadWrite(t *testing.T) {
	a, b := pipePair()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = a.WriteLine("hello")
	}()

	line, err := b.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
}

func TestLineConnCloseIdempotent(t *testing.T) {
	a, b := pipePair()
	defer b.Close()

	require.NoError(t, a.Close())
	assert.True(t, a.Closed())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Close()
		}()
	}
	wg.Wait()
	assert.NoError(t, a.Close())
}

func TestLineConnWriteAfterClose(t *testing.T) {
	a, b := pipePair()
	defer b.Close()
	require.NoError(t, a.Close())

	err := a.WriteLine("late")
	assert.ErrorIs(t, err, merr.ErrPeerClosed)
}

func TestLineConnCloseUnblocksRead(t *testing.T) {
	a, b := pipePair()
	defer b.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := a.ReadLine()
		errCh <- err
	}()

	require.NoError(t, a.Close())
	err := <-errCh
	assert.True(t, errors.Is(err, io.ErrClosedPipe) || network.IsClosedErr(err), "unexpected error: %v", err)
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	c, err := Dial(context.Background(), ln.Addr().String(), nil)
	require.NoError(t, err)
	defer c.Close()

	server := NewLineConn(<-accepted, nil)
	defer server.Close()

	assert.Equal(t, ln.Addr().String(), c.RemoteAddr())
	assert.Equal(t, c.LocalAddr(), server.RemoteAddr())

	require.NoError(t, c.WriteLine("ping"))
	line, err := server.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ping", line)

	// 对端关闭后读到 EOF。
	require.NoError(t, c.Close())
	_, err = server.ReadLine()
	assert.True(t, network.IsClosedErr(err))
}
