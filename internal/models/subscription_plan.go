package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type SubscriptionPlan struct {
	Base           `bson:",inline"`
	Business       BusinessRef `bson:"business" json:"business"`
	Name           string      `bson:"name" json:"name"`
	Description    string      `bson:"description" json:"description"`
	Amount         float64     `bson:"amount" json:"amount"`
	Currency       string      `bson:"currency" json:"currency"`
	Duration       int         `bson:"duration" json:"duration"`                         // minutes
	Datacap        *float64    `bson:"datacap,omitempty" json:"datacap,omitempty"`       // GB
	SpeedLimit     *float64    `bson:"speedLimit,omitempty" json:"speedLimit,omitempty"` // Mbps
	DeviceLimit    *int        `bson:"deviceLimit,omitempty" json:"deviceLimit,omitempty"`
	CanBePaused    bool        `bson:"canBePaused" json:"canBePaused"`
	TotalPauseTime int         `bson:"totalPauseTime" json:"totalPauseTime"` // minutes
}

// DefaultCurrency is used when a plan is created without one.
const DefaultCurrency = "NGN"

// PlanSnapshot is the point-in-time copy of a plan embedded in subscriptions.
type PlanSnapshot struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Duration    int                `bson:"duration" json:"duration"`
	Amount      float64            `bson:"amount" json:"amount"`
	Datacap     *float64           `bson:"datacap,omitempty" json:"datacap,omitempty"`
	SpeedLimit  *float64           `bson:"speedLimit,omitempty" json:"speedLimit,omitempty"`
}

func (p *SubscriptionPlan) Snapshot() PlanSnapshot {
	return PlanSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Duration:    p.Duration,
		Amount:      p.Amount,
		Datacap:     p.Datacap,
		SpeedLimit:  p.SpeedLimit,
	}
}
