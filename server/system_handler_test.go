package server

import (
	"evcore/internal"
	"evcore/ocpp/core"
	"evcore/types"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (l *nopLogger) FeatureEvent(string, string, string) {}
func (l *nopLogger) Debug(string)                        {}
func (l *nopLogger) Warn(string)                         {}
func (l *nopLogger) Error(string, error)                 {}
func (l *nopLogger) RawDataEvent(string, string)         {}

type recordingListener struct {
	started []*internal.EventMessage
	stopped []*internal.EventMessage
}

func (r *recordingListener) OnStatusNotification(*internal.EventMessage) {}
func (r *recordingListener) OnAuthorize(*internal.EventMessage)          {}

func (r *recordingListener) OnTransactionStart(event *internal.EventMessage) {
	r.started = append(r.started, event)
}

func (r *recordingListener) OnTransactionStop(event *internal.EventMessage) {
	r.stopped = append(r.stopped, event)
}

func newTestHandler(t *testing.T) *SystemHandler {
	t.Helper()
	handler := NewSystemHandler(time.UTC)
	handler.SetLogger(&nopLogger{})
	handler.SetParameters(true, true, true)
	return handler
}

func TestTransactionLifecycle(t *testing.T) {
	handler := newTestHandler(t)
	listener := &recordingListener{}
	handler.AddEventListener(listener)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	startResponse, err := handler.OnStartTransaction("cp001", &core.StartTransactionRequest{
		ConnectorId: 1,
		IdTag:       "D5F3A9B1",
		MeterStart:  1000,
		Timestamp:   types.NewDateTime(start),
	})
	require.NoError(t, err)
	assert.Equal(t, types.AuthorizationStatusAccepted, startResponse.IdTagInfo.Status)
	transactionId := startResponse.TransactionId
	require.Len(t, listener.started, 1)

	_, err = handler.OnMeterValues("cp001", &core.MeterValuesRequest{
		ConnectorId:   1,
		TransactionId: &transactionId,
		MeterValue: []types.MeterValue{
			{
				Timestamp: types.NewDateTime(start.Add(15 * time.Minute)),
				SampledValue: []types.SampledValue{
					{
						Value:     "1500",
						Measurand: types.MeasurandEnergyActiveImportRegister,
						Context:   types.ReadingContextSamplePeriodic,
						Unit:      types.UnitOfMeasureWh,
					},
				},
			},
		},
	})
	require.NoError(t, err)

	summaries := handler.ActiveTransactions()
	require.Len(t, summaries, 1)
	assert.Equal(t, transactionId, summaries[0].Id)
	assert.Equal(t, 500, summaries[0].TotalEnergyWh)
	assert.True(t, summaries[0].Active)

	_, err = handler.OnStopTransaction("cp001", &core.StopTransactionRequest{
		IdTag:         "D5F3A9B1",
		MeterStop:     2000,
		TransactionId: transactionId,
		Timestamp:     types.NewDateTime(start.Add(30 * time.Minute)),
		Reason:        core.ReasonLocal,
	})
	require.NoError(t, err)
	require.Len(t, listener.stopped, 1)
	assert.Empty(t, handler.ActiveTransactions())
}

func TestRemoteStopCommand(t *testing.T) {
	handler := newTestHandler(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	startResponse, err := handler.OnStartTransaction("cp001", &core.StartTransactionRequest{
		ConnectorId: 1,
		IdTag:       "D5F3A9B1",
		MeterStart:  1000,
		Timestamp:   types.NewDateTime(start),
	})
	require.NoError(t, err)

	request, err := handler.OnRemoteStopTransaction("cp001", strconv.Itoa(startResponse.TransactionId))
	require.NoError(t, err)
	assert.Equal(t, startResponse.TransactionId, request.TransactionId)

	summaries := handler.ActiveTransactions()
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].RemoteStopRequested)
	assert.True(t, summaries[0].Active)
}

func TestUnknownChargePointRejected(t *testing.T) {
	handler := NewSystemHandler(time.UTC)
	handler.SetLogger(&nopLogger{})
	handler.SetParameters(false, false, false)

	response, err := handler.OnStartTransaction("ghost", &core.StartTransactionRequest{
		ConnectorId: 1,
		IdTag:       "D5F3A9B1",
		MeterStart:  0,
		Timestamp:   types.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.AuthorizationStatusBlocked, response.IdTagInfo.Status)
}
