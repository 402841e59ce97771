package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	AccountActive    = "active"
	AccountSuspended = "suspended"
	AccountDeleted   = "deleted"
)

type Account struct {
	Base       `bson:",inline"`
	FullName   string               `bson:"fullName" json:"fullName"`
	Email      string               `bson:"email" json:"email"`
	Password   string               `bson:"password,omitempty" json:"-"`
	Businesses []primitive.ObjectID `bson:"businesses" json:"businesses"`
	Status     string               `bson:"status" json:"status"`
}

// AccountRef is the account snapshot embedded in a business.
type AccountRef struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	Email    string             `bson:"email" json:"email"`
	FullName string             `bson:"fullName" json:"fullName"`
}

func (a *Account) Ref() AccountRef {
	return AccountRef{ID: a.ID, Email: a.Email, FullName: a.FullName}
}
