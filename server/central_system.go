package server

import (
	"evcore/billing"
	"evcore/internal"
	"evcore/internal/config"
	"evcore/ocpi/listener"
	"evcore/ocpp"
	"evcore/ocpp/core"
	"evcore/ocpp/remotetrigger"
	"evcore/telegram"
	"evcore/types"
	"evcore/utility"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

type CentralSystem struct {
	server          *Server
	api             *Api
	logger          internal.LogHandler
	coreHandler     *SystemHandler
	remoteTrigger   remotetrigger.SystemHandler
	location        *time.Location
	pendingRequests map[string]chan string
	pendingMux      sync.Mutex
}

type CentralSystemCommand struct {
	ChargePointId string `json:"charge_point_id"`
	ConnectorId   int    `json:"connector_id"`
	FeatureName   string `json:"feature_name"`
	Payload       string `json:"payload"`
}

func (cs *CentralSystem) SetCoreHandler(handler *SystemHandler) {
	cs.coreHandler = handler
}

func (cs *CentralSystem) SetRemoteTriggerHandler(handler remotetrigger.SystemHandler) {
	cs.remoteTrigger = handler
}

func (cs *CentralSystem) handleIncomingMessage(ws *WebSocket, data []byte) error {
	chargePointId := ws.ID()
	message, err := utility.ParseJson(data)
	if err != nil {
		return err
	}
	callType, err := MessageType(message)
	if err != nil {
		return err
	}
	if callType == CallTypeError {
		cs.logger.Warn(fmt.Sprintf("error message received from charge point %s: %s", chargePointId, string(data)))
		return nil
	}
	if callType == CallTypeResult {
		result, err := ParseResultUnchecked(message)
		if err != nil {
			cs.logger.Warn(fmt.Sprintf("invalid message received from charge point %s: %s", chargePointId, string(data)))
			return nil
		}
		cs.pendingMux.Lock()
		responseChan, ok := cs.pendingRequests[result.UniqueId]
		cs.pendingMux.Unlock()
		if ok {
			responseChan <- result.Payload
		}
		return nil
	}
	callRequest, err := ParseRequest(message)
	if err != nil {
		return err
	}
	ws.SetUniqueId(callRequest.UniqueId)

	request := callRequest.Payload
	action := request.GetFeatureName()
	var confirmation ocpp.Response
	switch action {
	case core.BootNotificationFeatureName:
		confirmation, err = cs.coreHandler.OnBootNotification(chargePointId, request.(*core.BootNotificationRequest))
	case core.AuthorizeFeatureName:
		confirmation, err = cs.coreHandler.OnAuthorize(chargePointId, request.(*core.AuthorizeRequest))
	case core.HeartbeatFeatureName:
		confirmation, err = cs.coreHandler.OnHeartbeat(chargePointId, request.(*core.HeartbeatRequest))
	case core.StartTransactionFeatureName:
		confirmation, err = cs.coreHandler.OnStartTransaction(chargePointId, request.(*core.StartTransactionRequest))
	case core.StopTransactionFeatureName:
		confirmation, err = cs.coreHandler.OnStopTransaction(chargePointId, request.(*core.StopTransactionRequest))
	case core.MeterValuesFeatureName:
		confirmation, err = cs.coreHandler.OnMeterValues(chargePointId, request.(*core.MeterValuesRequest))
	case core.StatusNotificationFeatureName:
		confirmation, err = cs.coreHandler.OnStatusNotification(chargePointId, request.(*core.StatusNotificationRequest))
	case core.DataTransferFeatureName:
		confirmation, err = cs.coreHandler.OnDataTransfer(chargePointId, request.(*core.DataTransferRequest))
	default:
		err = fmt.Errorf("feature not supported: %s", action)
	}
	if err != nil {
		return err
	}

	if ws.IsClosed() {
		cs.logger.FeatureEvent(action, chargePointId, "websocket closed, response not sent")
		return nil
	}
	err = cs.server.SendResponse(ws, confirmation)
	return err
}

func (cs *CentralSystem) handleApiCommand(w http.ResponseWriter, command CentralSystemCommand) error {
	if command.FeatureName == "" {
		return fmt.Errorf("feature name is empty")
	}
	var request ocpp.Request
	var err error
	switch command.FeatureName {
	case remotetrigger.TriggerMessageFeatureName:
		request, err = cs.remoteTrigger.OnTriggerMessage(command.ChargePointId, command.ConnectorId, command.Payload)
	case core.RemoteStartTransactionFeatureName:
		request, err = cs.coreHandler.OnRemoteStartTransaction(command.ChargePointId, command.ConnectorId, command.Payload)
	case core.RemoteStopTransactionFeatureName:
		request, err = cs.coreHandler.OnRemoteStopTransaction(command.ChargePointId, command.Payload)
	default:
		err = fmt.Errorf("feature not supported: %s", command.FeatureName)
	}
	if err != nil {
		return err
	}

	id, err := cs.server.SendRequest(command.ChargePointId, request)
	if err != nil {
		return err
	}
	// buffered so a late confirmation never blocks the websocket reader
	// after the waiter has timed out
	response := make(chan string, 1)
	cs.pendingMux.Lock()
	cs.pendingRequests[id] = response
	cs.pendingMux.Unlock()

	select {
	case payload := <-response:
		if payload == "" {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.Header().Add("Content-Type", "application/json; charset=utf-8")
			_, err := w.Write([]byte(payload))
			if err != nil {
				cs.logger.Error("cs command send response", err)
			}
		}
	case <-time.After(10 * time.Second):
		cs.logger.Warn(fmt.Sprintf("timeout waiting for response from %s", command.ChargePointId))
		w.WriteHeader(http.StatusNoContent)
	}
	cs.pendingMux.Lock()
	delete(cs.pendingRequests, id)
	cs.pendingMux.Unlock()

	return nil
}

func (cs *CentralSystem) Start() {

	go func() {
		if err := cs.server.Start(); err != nil {
			cs.logger.Error("websocket server failed", err)
		}
	}()

	go func() {
		if err := cs.api.Start(); err != nil {
			cs.logger.Error("api server failed", err)
		}
	}()

	select {}
}

func NewCentralSystem(conf *config.Config) (*CentralSystem, error) {
	cs := &CentralSystem{}
	cs.pendingRequests = make(map[string]chan string)

	log.Println("set time zone to " + conf.TimeZone)
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return cs, fmt.Errorf("time zone initialization failed: %s", err)
	}
	cs.location = location

	var database internal.Database
	if conf.Mongo.Enabled {
		mongo, err := internal.NewMongoClient(conf)
		if err != nil {
			return cs, fmt.Errorf("mongodb setup failed: %s", err)
		}
		if mongo != nil {
			database = mongo
			log.Println("mongodb is configured and enabled")
		}
	} else {
		log.Println("database is disabled")
	}

	// logger with database for the message handling
	logService := internal.NewLogger(location)
	logService.SetDebugMode(conf.IsDebug)
	logService.SetDatabase(database)

	cs.logger = logService

	// system events handler
	systemHandler := NewSystemHandler(location)
	systemHandler.SetDatabase(database)
	systemHandler.SetLogger(logService)
	systemHandler.SetParameters(conf.IsDebug, conf.AcceptUnknownTag, conf.AcceptUnknownChp)

	if conf.Pricing.Enabled {
		if database == nil {
			return cs, fmt.Errorf("pricing requires a database with tariff data")
		}
		tariffData, err := database.GetTariff(conf.Pricing.TariffId)
		if err != nil {
			return cs, fmt.Errorf("tariff %s load failed: %s", conf.Pricing.TariffId, err)
		}
		systemHandler.SetPricing(billing.NewTariffPricing(tariffData))
		log.Println("pricing is configured and enabled with tariff " + conf.Pricing.TariffId)
	}

	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return cs, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.SetDatabase(database)
		telegramBot.Start()
		systemHandler.AddEventListener(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	if conf.Ocpi.Enabled {
		ocpiListener := listener.NewListener(conf, logService)
		systemHandler.AddEventListener(ocpiListener)
		log.Println("ocpi push service is configured and enabled")
	}

	// websocket listener
	wsServer := NewServer(conf, logService)
	wsServer.AddSupportedSubProtocol(types.SubProtocol16)
	wsServer.SetMessageHandler(cs.handleIncomingMessage)

	cs.server = wsServer

	trigger := NewTrigger(wsServer, logService)
	trigger.Start()
	systemHandler.SetTrigger(trigger)

	err = systemHandler.OnStart()
	if err != nil {
		return cs, err
	}

	cs.SetCoreHandler(systemHandler)
	cs.SetRemoteTriggerHandler(systemHandler)

	// api server
	apiServer := NewServerApi(conf, logService)
	apiServer.SetCommandHandler(cs.handleApiCommand)
	apiServer.SetTransactionReader(systemHandler)
	cs.api = apiServer

	return cs, nil
}
