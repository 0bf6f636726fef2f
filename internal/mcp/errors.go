// Package mcp exposes autoprice over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeStorage indicates a storage backend failure.
	ErrCodeStorage = -32001
	// ErrCodeCatalog indicates the catalog could not be read.
	ErrCodeCatalog = -32002
	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003
	// ErrCodeNotFound indicates the referenced document or config is unknown.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is a tool error with a JSON-RPC style code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return mapAppError(appErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewNotFoundError creates an error for an unknown document or config.
func NewNotFoundError(kind, id string) *MCPError {
	return &MCPError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s '%s' not found.", kind, id)}
}

func mapAppError(ae *apperrors.AppError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Category {
	case apperrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case apperrors.CategoryStorage:
		return &MCPError{Code: ErrCodeStorage, Message: message}
	case apperrors.CategoryCatalog:
		return &MCPError{Code: ErrCodeCatalog, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
