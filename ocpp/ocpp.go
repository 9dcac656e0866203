package ocpp

import (
	"encoding/json"
	"reflect"
)

// Request is a message sent from a charge point to the central system,
// or from the central system to a charge point.
type Request interface {
	GetFeatureName() string
}

// Response is the confirmation for a previously sent Request.
type Response interface {
	GetFeatureName() string
}

func ParseRawJsonRequest(raw interface{}, requestType reflect.Type) (Request, error) {
	if raw == nil {
		raw = &struct{}{}
	}
	bytes, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	request := reflect.New(requestType).Interface()
	err = json.Unmarshal(bytes, &request)
	if err != nil {
		return nil, err
	}
	result := request.(Request)
	return result, nil
}
