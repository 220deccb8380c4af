package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLoop struct {
	started, stopped int32
}

func (l *testLoop) Run(ctx context.Context, stopDoneC chan<- struct{}) {
	atomic.StoreInt32(&l.started, 1)
	<-ctx.Done()
	atomic.StoreInt32(&l.stopped, 1)
	stopDoneC <- struct{}{}
}

func TestRunAndStop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})

	loops := []*testLoop{{}, {}}
	s := New(&Config{Addr: "127.0.0.1:0", Handler: mux, Loops: []Loop{loops[0], loops[1]}})
	addr, err := s.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopC := make(chan struct{}, 1)
	go s.Run(ctx, stopC)

	resp, err := http.Get("http://" + addr.String() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&loops[0].started) == 1 && atomic.LoadInt32(&loops[1].started) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopC:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	for _, l := range loops {
		assert.EqualValues(t, 1, atomic.LoadInt32(&l.stopped))
	}

	_, err = http.Get("http://" + addr.String() + "/ping")
	assert.Error(t, err)
}

func TestListenError(t *testing.T) {
	s := New(&Config{Addr: "not-an-addr"})
	_, err := s.Listen()
	assert.Error(t, err)
}
