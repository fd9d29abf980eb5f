package models

import (
	"time"
)

// Rejection reasons recorded on request logs
const (
	RejectGlobalRateLimit = "global_rate_limit"
	RejectIPRateLimit     = "ip_rate_limit"
	RejectHoneypot        = "honeypot"
)

// Represents a logged public request
type RequestLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	RequestID      string    `json:"request_id"`
	Method         string    `json:"method"`
	Path           string    `gorm:"index" json:"path"`
	StatusCode     int       `gorm:"index" json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	RejectReason   string    `gorm:"index" json:"reject_reason,omitempty"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
