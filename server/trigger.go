package server

import (
	"evcore/internal"
	"evcore/models"
	"evcore/ocpp/remotetrigger"
	"fmt"
	"sync"
	"time"
)

const featureNameTrigger = "Trigger"

// Trigger periodically asks every charge point with a running transaction
// to report its meter values, so consumption keeps flowing even from
// stations that do not sample on their own.
type Trigger struct {
	connectors map[int]*models.Connector
	mux        sync.Mutex
	Register   chan *models.Connector
	Unregister chan int
	server     *Server
	logger     internal.LogHandler
}

func NewTrigger(server *Server, logger internal.LogHandler) *Trigger {
	return &Trigger{
		connectors: make(map[int]*models.Connector),
		Register:   make(chan *models.Connector),
		Unregister: make(chan int),
		server:     server,
		logger:     logger,
	}
}

func (t *Trigger) Start() {
	go t.listen()
	go t.triggerMeterValues()
}

// watched copies the registry under the lock; the poll loop iterates the
// copy so registrations arriving mid sweep never touch the same map.
func (t *Trigger) watched() []*models.Connector {
	t.mux.Lock()
	defer t.mux.Unlock()
	connectors := make([]*models.Connector, 0, len(t.connectors))
	for _, connector := range t.connectors {
		connectors = append(connectors, connector)
	}
	return connectors
}

func (t *Trigger) isWatching(transactionId int) bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	_, ok := t.connectors[transactionId]
	return ok
}

func (t *Trigger) triggerMeterValues() {
	waitStep := 20
	ticker := time.NewTicker(time.Duration(waitStep) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for _, connector := range t.watched() {
			request := remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTriggerMeterValues, connector.Id)
			_, err := t.server.SendRequest(connector.ChargePointId, request)
			if err != nil {
				t.logger.FeatureEvent(featureNameTrigger, connector.ChargePointId, fmt.Sprintf("error sending request: %v", err))
			}
		}
	}
}

func (t *Trigger) listen() {
	for {
		select {
		case connector := <-t.Register:
			t.mux.Lock()
			if _, ok := t.connectors[connector.CurrentTransactionId]; ok {
				t.mux.Unlock()
				continue
			}
			t.connectors[connector.CurrentTransactionId] = connector
			t.mux.Unlock()
			t.logger.FeatureEvent(featureNameTrigger, connector.ChargePointId, fmt.Sprintf("start watching on connector: %v transaction: %v", connector.Id, connector.CurrentTransactionId))
		case transactionId := <-t.Unregister:
			t.mux.Lock()
			_, ok := t.connectors[transactionId]
			delete(t.connectors, transactionId)
			t.mux.Unlock()
			if ok {
				t.logger.FeatureEvent(featureNameTrigger, "", fmt.Sprintf("stop watching on transaction: %v", transactionId))
			}
		}
	}
}
