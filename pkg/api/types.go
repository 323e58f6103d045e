package api

import (
	"time"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type BackendHealth struct {
	PageID     int    `json:"page_id"`
	LanguageID int    `json:"language_id"`
	MountPoint string `json:"mount_point,omitempty"`
	Type       string `json:"type"`
	Endpoint   string `json:"endpoint,omitempty"`
	Available  bool   `json:"available"`
	Error      string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
	Backends  []BackendHealth `json:"backends"`
}
