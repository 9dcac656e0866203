package models

type ChargePoint struct {
	Id              string `json:"charge_point_id" bson:"charge_point_id"`
	LocationId      string `json:"location_id" bson:"location_id"`
	IsEnabled       bool   `json:"is_enabled" bson:"is_enabled"`
	Status          string `json:"status" bson:"status"`
	ErrorCode       string `json:"error_code" bson:"error_code"`
	Info            string `json:"info" bson:"info"`
	Model           string `json:"model" bson:"model"`
	Vendor          string `json:"vendor" bson:"vendor"`
	SerialNumber    string `json:"serial_number" bson:"serial_number"`
	FirmwareVersion string `json:"firmware_version" bson:"firmware_version"`
}
