package server

import (
	"evcore/internal"
	"evcore/metrics/counters"
	"evcore/models"
	"evcore/ocpp/core"
	"evcore/ocpp/remotetrigger"
	"evcore/session"
	"evcore/types"
	"evcore/utility"
	"fmt"
	"strconv"
	"sync"
	"time"
)

var newTransactionId = 0

const defaultHeartbeatInterval = 600

type ChargePointState struct {
	status       core.ChargePointStatus
	errorCode    core.ChargePointErrorCode
	connectors   map[int]*models.Connector
	transactions map[int]*session.Transaction
	model        models.ChargePoint
}

// SystemHandler keeps the in-memory state of every known charge point and
// turns incoming OCPP traffic into charging session events. All message
// handlers run under one mutex, so each transaction sees its events in
// arrival order.
type SystemHandler struct {
	chargePoints   map[string]*ChargePointState
	database       internal.Database
	logger         internal.LogHandler
	eventListeners []internal.EventHandler
	pricing        session.Pricing
	trigger        *Trigger
	location       *time.Location
	debug          bool
	acceptTags     bool
	acceptPoints   bool
	mux            sync.Mutex
}

func NewSystemHandler(location *time.Location) *SystemHandler {
	return &SystemHandler{
		chargePoints: make(map[string]*ChargePointState),
		location:     location,
	}
}

func (h *SystemHandler) SetDatabase(database internal.Database) {
	h.database = database
}

func (h *SystemHandler) SetLogger(logger internal.LogHandler) {
	h.logger = logger
}

func (h *SystemHandler) SetPricing(pricing session.Pricing) {
	h.pricing = pricing
}

func (h *SystemHandler) SetTrigger(trigger *Trigger) {
	h.trigger = trigger
}

func (h *SystemHandler) AddEventListener(listener internal.EventHandler) {
	h.eventListeners = append(h.eventListeners, listener)
}

func (h *SystemHandler) SetParameters(debug bool, acceptTags bool, acceptPoints bool) {
	h.debug = debug
	h.acceptTags = acceptTags
	h.acceptPoints = acceptPoints
}

func (h *SystemHandler) OnStart() error {
	if h.database == nil {
		return nil
	}

	chargePoints, err := h.database.GetChargePoints()
	if err != nil {
		return fmt.Errorf("failed to load charge points from database: %s", err)
	}

	connectors, err := h.database.GetConnectors()
	if err != nil {
		return fmt.Errorf("failed to load connectors from database: %s", err)
	}

	for _, cp := range chargePoints {
		state := &ChargePointState{
			connectors:   make(map[int]*models.Connector),
			transactions: make(map[int]*session.Transaction),
			model:        cp,
		}
		state.status = core.GetStatus(cp.Status)
		state.errorCode = core.GetErrorCode(cp.ErrorCode)
		if !cp.IsEnabled {
			state.status = core.ChargePointStatusUnavailable
		}
		for _, c := range connectors {
			if c.ChargePointId == cp.Id {
				c.Init()
				state.connectors[c.Id] = c
			}
		}
		h.chargePoints[cp.Id] = state
	}
	h.logger.Debug(fmt.Sprintf("loaded %d charge points, %d connectors from database", len(chargePoints), len(connectors)))

	transaction, err := h.database.GetLastTransaction()
	if err != nil {
		h.logger.Error("failed to load last transaction from database", err)
	}
	if transaction != nil {
		newTransactionId = transaction.Id + 1
	}

	// sessions that were running when the server went down keep metering
	active, err := h.database.GetActiveTransactions()
	if err != nil {
		h.logger.Error("failed to load active transactions from database", err)
		return nil
	}
	for _, t := range active {
		state, ok := h.chargePoints[t.ChargePointId]
		if !ok {
			h.logger.Warn(fmt.Sprintf("active transaction #%d on unknown charge point %s", t.Id, t.ChargePointId))
			continue
		}
		t.SetPricing(h.pricing)
		state.transactions[t.Id] = t
		connector := h.getConnector(state, t.ConnectorId)
		connector.CurrentTransactionId = t.Id
		if h.trigger != nil {
			h.trigger.Register <- connector
		}
	}
	if len(active) > 0 {
		h.logger.Debug(fmt.Sprintf("restored %d active transactions", len(active)))
	}
	return nil
}

func (h *SystemHandler) addChargePoint(chargePointId string) {
	cp := models.ChargePoint{
		Id:        chargePointId,
		IsEnabled: true,
		Status:    string(core.ChargePointStatusAvailable),
		ErrorCode: string(core.NoError),
	}
	if h.database != nil {
		err := h.database.AddChargePoint(&cp)
		if err != nil {
			h.logger.Error("failed to add charge point to database", err)
		}
	}
	h.chargePoints[chargePointId] = &ChargePointState{
		connectors:   make(map[int]*models.Connector),
		transactions: make(map[int]*session.Transaction),
		model:        cp,
	}
}

func (h *SystemHandler) getConnector(state *ChargePointState, id int) *models.Connector {
	connector, ok := state.connectors[id]
	if !ok {
		connector = models.NewConnector(id, state.model.Id)
		state.connectors[id] = connector
		if h.database != nil {
			err := h.database.AddConnector(connector)
			if err != nil {
				h.logger.Error("failed to add connector to database", err)
			}
		}
	}
	return connector
}

func (h *SystemHandler) getChargePoint(chargePointId string) (*ChargePointState, bool) {
	state, ok := h.chargePoints[chargePointId]
	if !ok {
		h.logger.Warn(fmt.Sprintf("unknown charging point: %s", chargePointId))
		if h.acceptPoints {
			h.logger.Debug("registering new charge point")
			h.addChargePoint(chargePointId)
			state, ok = h.chargePoints[chargePointId]
		}
	}
	return state, ok
}

// getUser resolves the user behind an id tag. Both lookups are optional;
// a session can run with nothing but the raw tag.
func (h *SystemHandler) getUser(idTag string) *models.User {
	if h.database == nil || idTag == "" {
		return nil
	}
	userTag, err := h.database.GetUserTag(idTag)
	if err != nil || userTag == nil || userTag.Username == "" {
		return nil
	}
	user, err := h.database.GetUser(userTag.Username)
	if err != nil {
		return nil
	}
	return user
}

func (h *SystemHandler) findTransaction(state *ChargePointState, transactionId int) *session.Transaction {
	if transaction, ok := state.transactions[transactionId]; ok {
		return transaction
	}
	if h.database != nil {
		transaction, err := h.database.GetTransaction(transactionId)
		if err == nil && transaction != nil {
			transaction.SetPricing(h.pricing)
			state.transactions[transactionId] = transaction
			return transaction
		}
	}
	return nil
}

func (h *SystemHandler) notify(notify func(listener internal.EventHandler, event *internal.EventMessage), event *internal.EventMessage) {
	for _, listener := range h.eventListeners {
		notify(listener, event)
	}
}

func (h *SystemHandler) OnBootNotification(chargePointId string, request *core.BootNotificationRequest) (*core.BootNotificationResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	regStatus := core.RegistrationStatusAccepted
	state, ok := h.getChargePoint(chargePointId)
	if ok {
		if h.database != nil {
			if state.model.SerialNumber != request.ChargePointSerialNumber || state.model.FirmwareVersion != request.FirmwareVersion {
				state.model.SerialNumber = request.ChargePointSerialNumber
				state.model.FirmwareVersion = request.FirmwareVersion
				state.model.Model = request.ChargePointModel
				state.model.Vendor = request.ChargePointVendor
				err := h.database.UpdateChargePoint(&state.model)
				if err != nil {
					h.logger.Error("update charge point", err)
				}
			}
		}
	} else {
		regStatus = core.RegistrationStatusRejected
		h.logger.Debug(fmt.Sprintf("charge point %s not registered", chargePointId))
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, string(regStatus))
	return core.NewBootNotificationResponse(types.NewDateTime(time.Now()), defaultHeartbeatInterval, regStatus), nil
}

func (h *SystemHandler) OnAuthorize(chargePointId string, request *core.AuthorizeRequest) (*core.AuthorizeResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	authStatus := types.AuthorizationStatusAccepted
	state, ok := h.getChargePoint(chargePointId)
	if ok {
		if !state.model.IsEnabled {
			authStatus = types.AuthorizationStatusBlocked
		}
	} else {
		authStatus = types.AuthorizationStatusBlocked
	}
	username := ""
	id := request.IdTag
	if id == "" {
		authStatus = types.AuthorizationStatusInvalid
	} else if h.database != nil && authStatus == types.AuthorizationStatusAccepted {
		// status will be changed if user tag is found and enabled
		authStatus = types.AuthorizationStatusBlocked
		userTag, err := h.database.GetUserTag(id)
		if err != nil {
			h.logger.Error("failed to get user tag from database", err)
		}
		if userTag == nil {
			userTag = models.NewUserTag(id)
			userTag.IsEnabled = h.acceptTags
			err = h.database.AddUserTag(userTag)
			if err != nil {
				h.logger.Error("failed to add user tag to database", err)
			}
		}
		if userTag.IsEnabled {
			authStatus = types.AuthorizationStatusAccepted
		}
		username = userTag.Username
		userTag.LastSeen = time.Now()
		err = h.database.UpdateTagLastSeen(userTag)
		if err != nil {
			h.logger.Error("failed to update user tag", err)
		}
	}

	event := &internal.EventMessage{
		Type:          internal.EventTypeAuthorize,
		ChargePointId: chargePointId,
		Time:          time.Now(),
		Username:      username,
		IdTag:         id,
		Status:        string(authStatus),
		Payload:       request,
	}
	h.notify(func(l internal.EventHandler, e *internal.EventMessage) { l.OnAuthorize(e) }, event)

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("id tag: %s; authorization status: %s", id, authStatus))
	return core.NewAuthorizeResponse(types.NewIdTagInfo(authStatus)), nil
}

func (h *SystemHandler) OnHeartbeat(chargePointId string, request *core.HeartbeatRequest) (*core.HeartbeatResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	_, _ = h.getChargePoint(chargePointId)
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("%v", time.Now().In(h.location)))
	return core.NewHeartbeatResponse(types.NewDateTime(time.Now())), nil
}

func (h *SystemHandler) OnStartTransaction(chargePointId string, request *core.StartTransactionRequest) (*core.StartTransactionResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusBlocked), 0), nil
	}
	connector := h.getConnector(state, request.ConnectorId)
	connector.Lock()
	defer connector.Unlock()
	if connector.CurrentTransactionId >= 0 {
		h.logger.Error("connector is busy", fmt.Errorf("%s@%d is now busy with transaction %d", chargePointId, request.ConnectorId, connector.CurrentTransactionId))
	}

	user := h.getUser(request.IdTag)
	transaction := session.NewTransaction(newTransactionId, chargePointId, request.ConnectorId, user, request.IdTag, request.MeterStart, request.Timestamp.Time)
	transaction.SetPricing(h.pricing)
	newTransactionId += 1

	connector.CurrentTransactionId = transaction.Id
	state.transactions[transaction.Id] = transaction

	if h.database != nil {
		err := h.database.UpdateConnector(connector)
		if err != nil {
			h.logger.Error("update connector", err)
		}
		err = h.database.AddTransaction(transaction)
		if err != nil {
			h.logger.Error("add transaction", err)
		}
	}
	if h.trigger != nil {
		h.trigger.Register <- connector
	}
	counters.CountTransaction(state.model.LocationId, chargePointId)

	event := &internal.EventMessage{
		Type:          internal.EventTypeTransactionStart,
		ChargePointId: chargePointId,
		ConnectorId:   transaction.ConnectorId,
		Time:          transaction.Start.Timestamp,
		Username:      transaction.Start.User.Username,
		IdTag:         transaction.Start.IdTag,
		Status:        connector.Status,
		TransactionId: transaction.Id,
		Payload:       transaction.Summary(),
	}
	h.notify(func(l internal.EventHandler, e *internal.EventMessage) { l.OnTransactionStart(e) }, event)

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("started transaction #%v for connector %v", transaction.Id, transaction.ConnectorId))
	return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted), transaction.Id), nil
}

func (h *SystemHandler) OnStopTransaction(chargePointId string, request *core.StopTransactionRequest) (*core.StopTransactionResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStopTransactionResponse(), nil
	}

	transaction := h.findTransaction(state, request.TransactionId)
	if transaction == nil {
		h.logger.Warn(fmt.Sprintf("transaction #%v not found", request.TransactionId))
		return core.NewStopTransactionResponse(), nil
	}

	connector := h.getConnector(state, transaction.ConnectorId)
	connector.Lock()
	defer connector.Unlock()
	connector.CurrentTransactionId = -1
	if h.database != nil {
		err := h.database.UpdateConnector(connector)
		if err != nil {
			h.logger.Error("update connector", err)
		}
	}
	if h.trigger != nil {
		h.trigger.Unregister <- transaction.Id
	}

	// request data may contain meter values of begin and end of transaction
	for _, data := range request.TransactionData {
		if data.Timestamp == nil {
			continue
		}
		for _, value := range data.SampledValue {
			sample, ok := session.NewMeterSample(data.Timestamp.Time, value)
			if !ok {
				continue
			}
			if err := transaction.AddSample(sample); err != nil {
				h.logger.Warn(fmt.Sprintf("transaction #%v: %s", transaction.Id, err))
			}
		}
	}

	user := h.getUser(request.IdTag)
	err := transaction.StopCharging(user, request.IdTag, request.MeterStop, request.Timestamp.Time)
	if err != nil {
		h.logger.Warn(fmt.Sprintf("stop transaction: %s", err))
		return core.NewStopTransactionResponse(), nil
	}

	if h.database != nil {
		err = h.database.UpdateTransaction(transaction)
		if err != nil {
			h.logger.Error("update transaction", err)
		}
	}
	delete(state.transactions, transaction.Id)

	counters.CountConsumedEnergy(state.model.LocationId, chargePointId, float64(transaction.TotalEnergyWh()))
	counters.ObservePowerRate(state.model.LocationId, chargePointId, strconv.Itoa(transaction.ConnectorId), 0)

	summary := transaction.Summary()
	event := &internal.EventMessage{
		Type:          internal.EventTypeTransactionStop,
		ChargePointId: chargePointId,
		ConnectorId:   transaction.ConnectorId,
		Time:          transaction.Start.Timestamp,
		Username:      transaction.Start.User.Username,
		IdTag:         transaction.Start.IdTag,
		Status:        connector.Status,
		TransactionId: transaction.Id,
		Info:          fmt.Sprintf("consumed %.1f kWh", float64(summary.TotalEnergyWh)/1000),
		Payload:       summary,
	}
	h.notify(func(l internal.EventHandler, e *internal.EventMessage) { l.OnTransactionStop(e) }, event)

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("stopped transaction %v %v", request.TransactionId, request.Reason))
	return core.NewStopTransactionResponse(), nil
}

func (h *SystemHandler) OnMeterValues(chargePointId string, request *core.MeterValuesRequest) (*core.MeterValuesResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewMeterValuesResponse(), nil
	}

	transactionId := -1
	if request.TransactionId != nil {
		transactionId = *request.TransactionId
	} else if connector, ok := state.connectors[request.ConnectorId]; ok {
		transactionId = connector.CurrentTransactionId
	}
	if transactionId < 0 {
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("no transaction on connector #%v, meter values ignored", request.ConnectorId))
		return core.NewMeterValuesResponse(), nil
	}
	transaction := h.findTransaction(state, transactionId)
	if transaction == nil {
		h.logger.Warn(fmt.Sprintf("transaction #%v not found", transactionId))
		return core.NewMeterValuesResponse(), nil
	}

	for _, value := range request.MeterValue {
		if value.Timestamp == nil {
			continue
		}
		for _, sampled := range value.SampledValue {
			sample, ok := session.NewMeterSample(value.Timestamp.Time, sampled)
			if !ok {
				continue
			}
			if err := transaction.AddSample(sample); err != nil {
				h.logger.Warn(fmt.Sprintf("transaction #%v: %s", transaction.Id, err))
			}
		}
	}

	if h.database != nil {
		err := h.database.UpdateTransaction(transaction)
		if err != nil {
			h.logger.Error("update transaction", err)
		}
	}
	counters.ObservePowerRate(state.model.LocationId, chargePointId, strconv.Itoa(transaction.ConnectorId), float64(transaction.CurrentPowerW()))
	counters.ObserveTransactions(state.model.LocationId, len(state.transactions))

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("transaction #%v: %v Wh, %v W", transaction.Id, transaction.TotalEnergyWh(), transaction.CurrentPowerW()))
	return core.NewMeterValuesResponse(), nil
}

func (h *SystemHandler) OnStatusNotification(chargePointId string, request *core.StatusNotificationRequest) (*core.StatusNotificationResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStatusNotificationResponse(), nil
	}
	currentTransactionId := 0
	state.errorCode = request.ErrorCode
	if request.ErrorCode != core.NoError {
		counters.ObserveError(state.model.LocationId, chargePointId, string(request.ErrorCode))
	}
	if request.ConnectorId > 0 {
		connector := h.getConnector(state, request.ConnectorId)
		connector.Lock()
		defer connector.Unlock()
		connector.Status = string(request.Status)
		connector.Info = request.Info
		connector.VendorId = request.VendorId
		connector.ErrorCode = string(request.ErrorCode)
		if request.Status == core.ChargePointStatusAvailable {
			connector.CurrentTransactionId = -1
		}
		if h.database != nil {
			err := h.database.UpdateConnector(connector)
			if err != nil {
				h.logger.Error("update status", err)
			}
		}
		currentTransactionId = connector.CurrentTransactionId
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated connector #%v status to %v", request.ConnectorId, request.Status))
	} else {
		state.status = request.Status
		state.model.Status = string(request.Status)
		state.model.Info = request.Info
		if h.database != nil {
			err := h.database.UpdateChargePoint(&state.model)
			if err != nil {
				h.logger.Error("update status", err)
			}
		}
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated main controller status to %v", request.Status))
	}

	event := &internal.EventMessage{
		Type:          internal.EventTypeStatusNotification,
		ChargePointId: chargePointId,
		ConnectorId:   request.ConnectorId,
		Time:          time.Now(),
		Status:        string(request.Status),
		TransactionId: currentTransactionId,
		Payload:       request,
	}
	h.notify(func(l internal.EventHandler, e *internal.EventMessage) { l.OnStatusNotification(e) }, event)

	return core.NewStatusNotificationResponse(), nil
}

func (h *SystemHandler) OnDataTransfer(chargePointId string, request *core.DataTransferRequest) (*core.DataTransferResponse, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	_, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewDataTransferResponse(core.DataTransferStatusRejected), nil
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("received data from vendor %s: %v", request.VendorId, request.Data))
	return core.NewDataTransferResponse(core.DataTransferStatusAccepted), nil
}

func (h *SystemHandler) OnTriggerMessage(chargePointId string, connectorId int, message string) (*remotetrigger.TriggerMessageRequest, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	_, ok := h.getChargePoint(chargePointId)
	if !ok {
		return nil, fmt.Errorf("charge point not found")
	}
	request := remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTrigger(message), connectorId)
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("message: %v", message))
	return request, nil
}

func (h *SystemHandler) OnRemoteStartTransaction(chargePointId string, connectorId int, idTag string) (*core.RemoteStartTransactionRequest, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	_, ok := h.getChargePoint(chargePointId)
	if !ok {
		return nil, fmt.Errorf("charge point not found")
	}
	request := core.NewRemoteStartTransactionRequest(idTag)
	if connectorId > 0 {
		request.ConnectorId = &connectorId
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("id tag: %v", idTag))
	return request, nil
}

// OnRemoteStopTransaction records the operator's stop request on the
// session and produces the request for the charge point. The session stays
// active until the station confirms with a StopTransaction of its own.
func (h *SystemHandler) OnRemoteStopTransaction(chargePointId string, payload string) (*core.RemoteStopTransactionRequest, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return nil, fmt.Errorf("charge point not found")
	}
	transactionId := utility.ToInt(payload)
	transaction := h.findTransaction(state, transactionId)
	if transaction == nil {
		return nil, fmt.Errorf("transaction #%v not found", transactionId)
	}
	err := transaction.RequestRemoteStop("", time.Now())
	if err != nil {
		return nil, err
	}
	if h.database != nil {
		err = h.database.UpdateTransaction(transaction)
		if err != nil {
			h.logger.Error("update transaction", err)
		}
	}
	request := core.NewRemoteStopTransactionRequest(transactionId)
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("transaction: %v", transactionId))
	return request, nil
}

// ActiveTransactions returns summaries of every running session.
func (h *SystemHandler) ActiveTransactions() []session.Summary {
	h.mux.Lock()
	defer h.mux.Unlock()
	summaries := make([]session.Summary, 0)
	for _, state := range h.chargePoints {
		for _, transaction := range state.transactions {
			summaries = append(summaries, transaction.Summary())
		}
	}
	return summaries
}

// Transaction returns the full view of a session, live or finished.
func (h *SystemHandler) Transaction(transactionId int) (*session.Details, error) {
	h.mux.Lock()
	defer h.mux.Unlock()
	for _, state := range h.chargePoints {
		if transaction, ok := state.transactions[transactionId]; ok {
			details := transaction.Full()
			return &details, nil
		}
	}
	if h.database != nil {
		transaction, err := h.database.GetTransaction(transactionId)
		if err != nil {
			return nil, fmt.Errorf("transaction #%v not found", transactionId)
		}
		transaction.SetPricing(h.pricing)
		details := transaction.Full()
		return &details, nil
	}
	return nil, fmt.Errorf("transaction #%v not found", transactionId)
}
