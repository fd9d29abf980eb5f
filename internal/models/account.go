package models

import "time"

// Account is the tenant's CRM identity and its current OAuth token pair.
// The identifier columns never change after provisioning; the tokens are
// replaced together by the token refresher.
type Account struct {
	LocationID   string    `gorm:"primaryKey;column:location_id" json:"locationId"`
	UserID       string    `gorm:"column:user_id" json:"userId"`
	CalendarID   string    `gorm:"column:calendar_id" json:"calendarId"`
	BusinessName string    `gorm:"column:business_name" json:"businessName"`
	AccessToken  string    `gorm:"column:access_token;not null" json:"-"`
	RefreshToken string    `gorm:"column:refresh_token;not null" json:"-"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Account) TableName() string {
	return "account"
}
