//go:build windows

package ipc

import (
	"context"
	"testing"

	"github.com/Microsoft/go-winio"
	"github.com/stretchr/testify/require"
)

func TestDialFindsPipe(t *testing.T) {
	names := PipeNames()
	for _, name := range names[:len(names)-1] {
		if nc, err := winio.DialPipe(name, nil); err == nil {
			nc.Close()
			t.Skip("a real Discord client is running")
		}
	}

	ln, err := winio.ListenPipe(names[len(names)-1], nil)
	if err != nil {
		t.Skipf("named pipes unavailable: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		startFakeDiscord(t, conn, ack)
	}()

	c, err := Dial(context.Background(), "123")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.SetActivity(&Activity{Details: "x"}))
}
