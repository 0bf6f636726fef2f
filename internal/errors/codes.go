// Package errors provides structured error handling for autoprice.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (backends, persisted blobs)
//   - 3XX: Catalog errors (loading, malformed records)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates storage backend errors.
	CategoryStorage Category = "STORAGE"
	// CategoryCatalog indicates catalog loading errors.
	CategoryCatalog Category = "CATALOG"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStorageOpen    = "ERR_201_STORAGE_OPEN"
	ErrCodeStorageWrite   = "ERR_202_STORAGE_WRITE"
	ErrCodeStorageCorrupt = "ERR_203_STORAGE_CORRUPT"
	ErrCodeStorageClosed  = "ERR_204_STORAGE_CLOSED"

	// Catalog errors (300-399)
	ErrCodeCatalogLoad      = "ERR_301_CATALOG_LOAD"
	ErrCodeCatalogMalformed = "ERR_302_CATALOG_MALFORMED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidTier  = "ERR_402_INVALID_TIER"
	ErrCodeQueryEmpty   = "ERR_403_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryCatalog
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageOpen:
		return SeverityFatal
	case ErrCodeStorageWrite, ErrCodeStorageCorrupt, ErrCodeCatalogMalformed:
		// The cache and index degrade to less state instead of failing.
		return SeverityWarning
	default:
		return SeverityError
	}
}
