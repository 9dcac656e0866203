package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLateCommandConfirmation(t *testing.T) {
	cs := &CentralSystem{
		logger:          &nopLogger{},
		pendingRequests: make(map[string]chan string),
	}
	response := make(chan string, 1)
	cs.pendingRequests["msg-9"] = response

	// nobody is waiting on the command anymore; the reader must still
	// deliver and return without blocking the connection
	ws := &WebSocket{id: "cp001"}
	done := make(chan struct{})
	go func() {
		err := cs.handleIncomingMessage(ws, []byte(`[3,"msg-9",{"status":"Accepted"}]`))
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader blocked on an unconsumed confirmation")
	}
	assert.JSONEq(t, `{"status":"Accepted"}`, <-response)
}
