package server

import (
	"evcore/ocpp/core"
	"evcore/utility"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	t.Run("parses a start transaction call", func(t *testing.T) {
		raw := []byte(`[2,"msg-1","StartTransaction",{"connectorId":1,"idTag":"D5F3A9B1","meterStart":1000,"timestamp":"2024-05-01T10:00:00Z"}]`)
		fields, err := utility.ParseJson(raw)
		require.NoError(t, err)

		callType, err := MessageType(fields)
		require.NoError(t, err)
		assert.Equal(t, CallTypeRequest, callType)

		callRequest, err := ParseRequest(fields)
		require.NoError(t, err)
		assert.Equal(t, "msg-1", callRequest.UniqueId)
		assert.Equal(t, core.StartTransactionFeatureName, callRequest.GetFeatureName())

		request, ok := callRequest.Payload.(*core.StartTransactionRequest)
		require.True(t, ok)
		assert.Equal(t, 1, request.ConnectorId)
		assert.Equal(t, "D5F3A9B1", request.IdTag)
		assert.Equal(t, 1000, request.MeterStart)
	})

	t.Run("parses meter values with sampled values", func(t *testing.T) {
		raw := []byte(`[2,"msg-2","MeterValues",{"connectorId":1,"transactionId":42,"meterValue":[{"timestamp":"2024-05-01T10:15:00Z","sampledValue":[{"value":"1500","measurand":"Energy.Active.Import.Register","context":"Sample.Periodic","unit":"Wh"}]}]}]`)
		fields, err := utility.ParseJson(raw)
		require.NoError(t, err)

		callRequest, err := ParseRequest(fields)
		require.NoError(t, err)

		request, ok := callRequest.Payload.(*core.MeterValuesRequest)
		require.True(t, ok)
		require.NotNil(t, request.TransactionId)
		assert.Equal(t, 42, *request.TransactionId)
		require.Len(t, request.MeterValue, 1)
		require.Len(t, request.MeterValue[0].SampledValue, 1)
		assert.Equal(t, "1500", request.MeterValue[0].SampledValue[0].Value)
	})

	t.Run("rejects unknown actions", func(t *testing.T) {
		raw := []byte(`[2,"msg-3","GetDiagnostics",{}]`)
		fields, err := utility.ParseJson(raw)
		require.NoError(t, err)

		_, err = ParseRequest(fields)
		assert.Error(t, err)
	})

	t.Run("rejects short frames", func(t *testing.T) {
		raw := []byte(`[2,"msg-4"]`)
		fields, err := utility.ParseJson(raw)
		require.NoError(t, err)

		_, err = ParseRequest(fields)
		assert.Error(t, err)
	})
}

func TestParseResultUnchecked(t *testing.T) {
	raw := []byte(`[3,"msg-5",{"status":"Accepted"}]`)
	fields, err := utility.ParseJson(raw)
	require.NoError(t, err)

	callType, err := MessageType(fields)
	require.NoError(t, err)
	assert.Equal(t, CallTypeResult, callType)

	result, err := ParseResultUnchecked(fields)
	require.NoError(t, err)
	assert.Equal(t, "msg-5", result.UniqueId)
	assert.JSONEq(t, `{"status":"Accepted"}`, result.Payload)
}

func TestCallFraming(t *testing.T) {
	t.Run("call result marshals as a three element array", func(t *testing.T) {
		callResult := CreateCallResult(core.NewMeterValuesResponse(), "msg-6")
		data, err := callResult.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `[3,"msg-6",{}]`, string(data))
	})

	t.Run("call request marshals with its action", func(t *testing.T) {
		callRequest := CreateCallRequest(core.NewRemoteStopTransactionRequest(42), "msg-7")
		data, err := callRequest.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `[2,"msg-7","RemoteStopTransaction",{"transactionId":42}]`, string(data))
	})
}
