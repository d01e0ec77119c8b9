package handler

import "github.com/agencyhq/invoicing/internal/interfaces/http/dto"

// Envelope types for the OpenAPI docs. The handlers write dto.Response;
// these only give swag a typed data field to describe.

// APIResponse is the success envelope around T
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// MessageData confirms an action that has nothing else to return
type MessageData struct {
	Message string `json:"message" example:"Logged out successfully"`
}

// CountData reports how many records a bulk action touched
type CountData struct {
	Count int64 `json:"count" example:"3"`
}
