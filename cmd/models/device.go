package models

import (
	"strings"
	"time"
)

// Recognized deployment environments for registered devices
const (
	EnvProd    = "prod"
	EnvStaging = "staging"
	EnvDev     = "dev"
)

// DeviceToken is a registered push token and its routing attributes.
// The token value itself is the primary key; re-registering an existing
// token overwrites everything except CreatedAt.
type DeviceToken struct {
	Token       string    `gorm:"primaryKey" json:"token"`
	Environment string    `gorm:"type:varchar(20);index" json:"env"`
	StoreID     string    `gorm:"type:varchar(50);index" json:"storeId,omitempty"`
	Platform    string    `gorm:"type:varchar(20)" json:"platform,omitempty"`
	AppVersion  string    `gorm:"type:varchar(20)" json:"appVersion,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RegisterDeviceRequest is the body of the public token registration endpoint
type RegisterDeviceRequest struct {
	Token      string `json:"token"`
	Env        string `json:"env,omitempty"`
	StoreID    string `json:"storeId,omitempty"`
	Platform   string `json:"platform,omitempty"`
	AppVersion string `json:"appVersion,omitempty"`
}

// NormalizeEnvironment maps free-form environment strings onto the
// recognized set. Matching is case-insensitive on the prefix: "prod*"
// is prod, "stag*" is staging, anything else (including empty) is dev.
func NormalizeEnvironment(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(v, "prod"):
		return EnvProd
	case strings.HasPrefix(v, "stag"):
		return EnvStaging
	default:
		return EnvDev
	}
}
