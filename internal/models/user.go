package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	Base                  `bson:",inline"`
	Business              BusinessRef    `bson:"business" json:"business"`
	FullName              string         `bson:"fullName" json:"fullName"`
	Username              string         `bson:"username" json:"username"`
	Email                 string         `bson:"email" json:"email"`
	Phone                 string         `bson:"phone,omitempty" json:"phone,omitempty"`
	Password              string         `bson:"password,omitempty" json:"-"`
	CaptivePortalPassword string         `bson:"captivePortalPassword,omitempty" json:"captivePortalPassword,omitempty"`
	Devices               []Device       `bson:"devices" json:"devices"`
	CurrentPlan           *CurrentPlan   `bson:"currentPlan,omitempty" json:"currentPlan,omitempty"`
	CustomFields          map[string]any `bson:"customFields,omitempty" json:"customFields,omitempty"`
	Stats                 UserStats      `bson:"stats" json:"stats"`
	OTP                   string         `bson:"otp,omitempty" json:"-"`
	ResetToken            string         `bson:"resetToken,omitempty" json:"-"`
	Verified              bool           `bson:"verified" json:"verified"`
}

type Device struct {
	MacAddress string    `bson:"macAddress" json:"macAddress"`
	LastSeen   time.Time `bson:"lastSeen" json:"lastSeen"`
	Name       string    `bson:"name,omitempty" json:"name,omitempty"`
}

// CurrentPlan mirrors the user's active subscription for fast portal lookups.
type CurrentPlan struct {
	Plan         CurrentPlanRef    `bson:"plan" json:"plan"`
	Subscription SubscriptionState `bson:"subscription" json:"subscription"`
	Pause        PauseState        `bson:"pause" json:"pause"`
	AmountPaid   float64           `bson:"amountPaid" json:"amountPaid"`
	StartDate    time.Time         `bson:"startDate" json:"startDate"`
	EndDate      time.Time         `bson:"endDate" json:"endDate"`
}

type CurrentPlanRef struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Name     string             `bson:"name" json:"name"`
	Duration int                `bson:"duration" json:"duration"`
	Amount   float64            `bson:"amount" json:"amount"`
}

type SubscriptionState struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	StartDate time.Time          `bson:"startDate" json:"startDate"`
	EndDate   time.Time          `bson:"endDate" json:"endDate"`
	Status    string             `bson:"status" json:"status"`
}

type PauseState struct {
	Status         bool       `bson:"status" json:"status"`
	StartDate      *time.Time `bson:"startDate,omitempty" json:"startDate,omitempty"`
	TotalPauseTime int        `bson:"totalPauseTime" json:"totalPauseTime"` // minutes
}

type UserStats struct {
	TotalTime      int `bson:"totalTime" json:"totalTime"`
	WeeklyTime     int `bson:"weeklyTime" json:"weeklyTime"`
	FreeTrialsUsed int `bson:"freeTrialsUsed" json:"freeTrialsUsed"`
}

// UserRef is the user snapshot embedded in a subscription.
type UserRef struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Username string             `bson:"username" json:"username"`
	Email    string             `bson:"email" json:"email"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, FullName: u.FullName, Username: u.Username, Email: u.Email}
}

// HasDevice reports whether mac is already registered to the user.
func (u *User) HasDevice(mac string) bool {
	for _, d := range u.Devices {
		if d.MacAddress == mac {
			return true
		}
	}
	return false
}
