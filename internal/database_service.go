package internal

import (
	"evcore/entity/tariff"
	"evcore/models"
	"evcore/session"
)

type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() (interface{}, error)
	GetChargePoints() ([]models.ChargePoint, error)
	AddChargePoint(chargePoint *models.ChargePoint) error
	UpdateChargePoint(chargePoint *models.ChargePoint) error
	GetConnectors() ([]*models.Connector, error)
	AddConnector(connector *models.Connector) error
	UpdateConnector(connector *models.Connector) error
	GetUserTag(idTag string) (*models.UserTag, error)
	AddUserTag(userTag *models.UserTag) error
	UpdateTagLastSeen(userTag *models.UserTag) error
	GetUser(username string) (*models.User, error)
	GetTariff(id string) (*tariff.Tariff, error)
	AddTransaction(transaction *session.Transaction) error
	UpdateTransaction(transaction *session.Transaction) error
	GetTransaction(id int) (*session.Transaction, error)
	GetLastTransaction() (*session.Transaction, error)
	GetActiveTransactions() ([]*session.Transaction, error)
	GetSubscriptions() ([]models.UserSubscription, error)
	AddSubscription(subscription *models.UserSubscription) error
	DeleteSubscription(subscription *models.UserSubscription) error
}

type Data interface {
	DataType() string
}
