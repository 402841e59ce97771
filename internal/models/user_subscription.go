package models

import "time"

type UserSubscription struct {
	Base             `bson:",inline"`
	User             UserRef      `bson:"user" json:"user"`
	Business         BusinessRef  `bson:"business" json:"business"`
	Plan             PlanSnapshot `bson:"plan" json:"plan"`
	AmountPaid       float64      `bson:"amountPaid" json:"amountPaid"`
	Currency         string       `bson:"currency" json:"currency"`
	StartDate        time.Time    `bson:"startDate" json:"startDate"`
	EndDate          time.Time    `bson:"endDate" json:"endDate"`
	PaymentReference string       `bson:"paymentReference" json:"paymentReference"`
	Status           string       `bson:"status" json:"status"`
	PausedAt         *time.Time   `bson:"pausedAt,omitempty" json:"pausedAt,omitempty"`
}
