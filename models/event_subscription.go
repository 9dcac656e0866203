package models

type SubscriptionType string

const (
	SubscriptionTransactionStart SubscriptionType = "transaction_start"
	SubscriptionTransactionStop  SubscriptionType = "transaction_stop"
	SubscriptionAlert            SubscriptionType = "alert"
)

type UserSubscription struct {
	UserID   int                `json:"user_id" bson:"user_id"`
	Username string             `json:"username" bson:"username"`
	Events   []SubscriptionType `json:"events" bson:"events"`
}

func (s *UserSubscription) SubscribedOn(event SubscriptionType) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}
