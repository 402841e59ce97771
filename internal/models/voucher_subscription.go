package models

import "time"

type VoucherSubscription struct {
	Base             `bson:",inline"`
	Business         BusinessRef  `bson:"business" json:"business"`
	FullName         string       `bson:"fullName" json:"fullName"`
	Email            string       `bson:"email" json:"email"`
	PaymentReference string       `bson:"paymentReference" json:"paymentReference"`
	Plan             PlanSnapshot `bson:"plan" json:"plan"`
	AmountPaid       float64      `bson:"amountPaid" json:"amountPaid"`
	Currency         string       `bson:"currency" json:"currency"`
	StartDate        time.Time    `bson:"startDate" json:"startDate"`
	EndDate          time.Time    `bson:"endDate" json:"endDate"`
	VoucherCode      string       `bson:"voucherCode" json:"voucherCode"`
	Status           string       `bson:"status" json:"status"`
}
