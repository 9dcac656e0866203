package server

import (
	"testing"
	"time"

	"evcore/models"

	"github.com/stretchr/testify/assert"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTriggerWatchRegistry(t *testing.T) {
	trigger := NewTrigger(nil, &nopLogger{})
	trigger.Start()

	connector := &models.Connector{Id: 1, ChargePointId: "cp001", CurrentTransactionId: 7}
	trigger.Register <- connector
	waitFor(t, func() bool { return trigger.isWatching(7) })

	// registering the same transaction twice keeps a single entry
	trigger.Register <- connector
	assert.Len(t, trigger.watched(), 1)

	trigger.Unregister <- 7
	waitFor(t, func() bool { return !trigger.isWatching(7) })
	assert.Empty(t, trigger.watched())
}

func TestTriggerSweepDuringRegistration(t *testing.T) {
	trigger := NewTrigger(nil, &nopLogger{})
	trigger.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			trigger.Register <- &models.Connector{Id: i, ChargePointId: "cp001", CurrentTransactionId: i}
		}
		close(done)
	}()
	for i := 0; i < 50; i++ {
		trigger.watched()
	}
	<-done

	waitFor(t, func() bool { return len(trigger.watched()) == 50 })
}
