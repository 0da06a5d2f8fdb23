package domain

import "time"

// Product is the catalog record that orders re-price against. Stock counts
// are authoritative here, never on the order.
type Product struct {
	ID             string
	Slug           string
	Name           string
	Image          string
	Price          int64
	SalePrice      *int64
	ShippingCharge int64
	ShippingClass  ShippingClass
	CountInStock   int
	Sold           int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserProfile is the customer/staff record. Admins with a phone and carrier
// configured receive order alerts through their carrier's SMS email gateway.
type UserProfile struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Carrier   string
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SMSGatewayAddress builds the phone@carrier-gateway address for admin
// alerts. Returns empty when the profile lacks either part.
func (u UserProfile) SMSGatewayAddress() string {
	if u.Phone == "" || u.Carrier == "" {
		return ""
	}
	return u.Phone + "@" + u.Carrier
}
