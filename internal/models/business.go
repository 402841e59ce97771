package models

import "time"

const (
	BusinessDraft     = "draft"
	BusinessActive    = "active"
	BusinessSuspended = "suspended"

	SubscriptionModelVoucher = "voucher"
	SubscriptionModelAccount = "account"

	GatewayPaystack = "paystack"
	GatewayMaclink  = "maclink"
)

type Business struct {
	Base              `bson:",inline"`
	Account           AccountRef       `bson:"account" json:"account"`
	Name              string           `bson:"name" json:"name"`
	Subdomain         string           `bson:"subdomain" json:"subdomain"`
	CustomDomain      string           `bson:"customDomain,omitempty" json:"customDomain,omitempty"`
	Status            string           `bson:"status" json:"status"`
	SubscriptionModel string           `bson:"subscriptionModel" json:"subscriptionModel"`
	Branding          Branding         `bson:"branding" json:"branding"`
	Settings          BusinessSettings `bson:"settings" json:"settings"`
	PaymentGateway    *PaymentGateway  `bson:"paymentGateway,omitempty" json:"paymentGateway,omitempty"`
	Analytics         Analytics        `bson:"analytics" json:"analytics"`
}

type Branding struct {
	Colors BrandColors `bson:"colors" json:"colors"`
	Logo   *Asset      `bson:"logo,omitempty" json:"logo,omitempty"`
	Flyer  *Asset      `bson:"flyer,omitempty" json:"flyer,omitempty"`
}

type BrandColors struct {
	Primary   string `bson:"primary" json:"primary"`
	Secondary string `bson:"secondary" json:"secondary"`
	Accent    string `bson:"accent" json:"accent"`
}

type BusinessSettings struct {
	MaxUsers          int  `bson:"maxUsers" json:"maxUsers"`
	ShowLeaderboard   bool `bson:"showLeaderboard" json:"showLeaderboard"`
	ShowCapacity      bool `bson:"showCapacity" json:"showCapacity"`
	MaxDevicesPerUser int  `bson:"maxDevicesPerUser" json:"maxDevicesPerUser"`
	DefaultBandwidth  int  `bson:"defaultBandwidth" json:"defaultBandwidth"` // Mbps
	FreeTrialLimit    int  `bson:"freeTrialLimit" json:"freeTrialLimit"`
}

type PaymentGateway struct {
	Provider   string  `bson:"provider" json:"provider"`
	SecretKey  string  `bson:"secretKey,omitempty" json:"-"`
	PublicKey  string  `bson:"publicKey,omitempty" json:"publicKey,omitempty"`
	Percentage float64 `bson:"percentage" json:"percentage"`
}

type Analytics struct {
	TotalRevenue float64   `bson:"totalRevenue" json:"totalRevenue"`
	ActiveUsers  int       `bson:"activeUsers" json:"activeUsers"`
	LastUpdated  time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

func (b *Business) Ref() BusinessRef {
	return BusinessRef{ID: b.ID, Name: b.Name}
}

// ApplyDefaults fills unset branding, settings and gateway values.
func (b *Business) ApplyDefaults(now time.Time) {
	if b.Status == "" {
		b.Status = BusinessDraft
	}
	if b.Branding.Colors.Primary == "" {
		b.Branding.Colors.Primary = "#3B82F6"
	}
	if b.Branding.Colors.Secondary == "" {
		b.Branding.Colors.Secondary = "#8B5CF6"
	}
	if b.Branding.Colors.Accent == "" {
		b.Branding.Colors.Accent = "#60A5FA"
	}
	if b.Settings == (BusinessSettings{}) {
		b.Settings = BusinessSettings{
			MaxUsers:          100,
			ShowLeaderboard:   true,
			ShowCapacity:      true,
			MaxDevicesPerUser: 2,
			DefaultBandwidth:  1,
			FreeTrialLimit:    1,
		}
	}
	if b.PaymentGateway == nil {
		b.PaymentGateway = &PaymentGateway{}
	}
	if b.PaymentGateway.Provider == "" {
		b.PaymentGateway.Provider = GatewayMaclink
	}
	if b.PaymentGateway.Percentage == 0 {
		b.PaymentGateway.Percentage = 2.5
	}
	if b.Analytics.LastUpdated.IsZero() {
		b.Analytics.LastUpdated = now
	}
}
