package api

import (
	"time"

	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
)

type LogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Duration   float64   `json:"duration_sec"`
	Bytes      int       `json:"bytes"`
	Service    string    `json:"service"`
}

type Pagination struct {
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	Limit       int `json:"limit"`
}

type AnalysesResponse struct {
	Analyses   []models.Analysis `json:"analyses"`
	Pagination Pagination        `json:"pagination"`
}

type MatchRequest struct {
	Word string `json:"word"`
}

type RulesResponse struct {
	Problem []lexer.Rule `json:"problem"`
	General []lexer.Rule `json:"general"`
}
