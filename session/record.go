package session

import (
	"evcore/models"
	"time"
)

// UserSnapshot is a reduced copy of the user embedded into a transaction
// record. Credentials, address and account-state fields are stripped at
// construction so the archived record carries no more PII than billing needs.
type UserSnapshot struct {
	UserId   string `json:"user_id" bson:"user_id"`
	Username string `json:"username" bson:"username"`
	Name     string `json:"name" bson:"name"`
	Role     string `json:"role" bson:"role"`
}

func NewUserSnapshot(user *models.User) UserSnapshot {
	if user == nil {
		return UserSnapshot{}
	}
	return UserSnapshot{
		UserId:   user.UserId,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
	}
}

// StartRecord fixes the state of the meter at plug-in time.
type StartRecord struct {
	MeterStart float64      `json:"meter_start" bson:"meter_start"`
	Timestamp  time.Time    `json:"timestamp" bson:"timestamp"`
	IdTag      string       `json:"id_tag" bson:"id_tag"`
	User       UserSnapshot `json:"user" bson:"user"`
}

// StopRecord freezes the totals of a finished transaction. It is written
// exactly once and never recomputed, even if more data were to arrive.
type StopRecord struct {
	MeterStop           float64      `json:"meter_stop" bson:"meter_stop"`
	Timestamp           time.Time    `json:"timestamp" bson:"timestamp"`
	IdTag               string       `json:"id_tag" bson:"id_tag"`
	User                UserSnapshot `json:"user" bson:"user"`
	TotalConsumptionWh  int          `json:"total_consumption_wh" bson:"total_consumption_wh"`
	TotalInactivitySecs int          `json:"total_inactivity_secs" bson:"total_inactivity_secs"`
	TotalDurationSecs   int          `json:"total_duration_secs" bson:"total_duration_secs"`
	StartSoC            *int         `json:"start_soc,omitempty" bson:"start_soc,omitempty"`
	EndSoC              *int         `json:"end_soc,omitempty" bson:"end_soc,omitempty"`
	TotalPrice          *float64     `json:"total_price,omitempty" bson:"total_price,omitempty"`
	PriceUnit           string       `json:"price_unit,omitempty" bson:"price_unit,omitempty"`
}

// RemoteStopRequest records operator intent to stop a transaction. It never
// stops the transaction by itself; the charge point still reports the real
// stop through the regular channel.
type RemoteStopRequest struct {
	IdTag     string    `json:"id_tag" bson:"id_tag"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
