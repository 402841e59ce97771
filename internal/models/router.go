package models

import "time"

const (
	RouterTypeMikrotik = "mikrotik"

	RouterOnline      = "online"
	RouterOffline     = "offline"
	RouterMaintenance = "maintenance"
)

type Router struct {
	Base             `bson:",inline"`
	Business         BusinessRef      `bson:"business" json:"business"`
	Type             string           `bson:"type" json:"type"`
	Connection       RouterConnection `bson:"connection" json:"connection"`
	Status           string           `bson:"status" json:"status"`
	Stats            RouterStats      `bson:"stats" json:"stats"`
	PaymentReference string           `bson:"paymentReference,omitempty" json:"paymentReference,omitempty"`
}

type RouterConnection struct {
	Host     string `bson:"host" json:"host"`
	Port     int    `bson:"port" json:"port"`
	Username string `bson:"username" json:"username"`
	Password string `bson:"password,omitempty" json:"-"`
}

type RouterStats struct {
	ConnectedUsers int       `bson:"connectedUsers" json:"connectedUsers"`
	Bandwidth      float64   `bson:"bandwidth" json:"bandwidth"`
	LastPing       time.Time `bson:"lastPing" json:"lastPing"`
}
