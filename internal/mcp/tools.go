package mcp

import (
	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/index"
	"github.com/Aman-CERP/autoprice/internal/search"
)

// SearchInput defines the input schema for the search_catalog tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"vehicle brand, model or variant words to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default and cap 20"`
}

// SearchOutput defines the output schema for the search_catalog tool.
type SearchOutput struct {
	Query   string          `json:"query" jsonschema:"the query as received"`
	Results []search.Result `json:"results" jsonschema:"ranked results, best first"`
}

// HistoryListInput defines the input schema for the history_list tool (no parameters).
type HistoryListInput struct{}

// HistoryOutput defines the output schema for the history tools.
type HistoryOutput struct {
	Items []history.Item `json:"items" jsonschema:"recent vehicles, newest first"`
}

// HistoryAddInput defines the input schema for the history_add tool.
type HistoryAddInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the catalog document, as returned by search_catalog"`
	ConfigID   string `json:"config_id,omitempty" jsonschema:"id of the configuration, when the result named one"`
}

// HistoryAddOutput defines the output schema for the history_add tool.
type HistoryAddOutput struct {
	Item history.Item `json:"item" jsonschema:"the stored entry"`
	Size int          `json:"size" jsonschema:"history length after the insert"`
}

// HistoryClearInput defines the input schema for the history_clear tool (no parameters).
type HistoryClearInput struct{}

// HistoryClearOutput defines the output schema for the history_clear tool.
type HistoryClearOutput struct {
	Removed int `json:"removed" jsonschema:"number of entries removed"`
}

// HistoryMatchInput defines the input schema for the history_match tool.
type HistoryMatchInput struct {
	Brand string  `json:"brand" jsonschema:"brand of the remembered vehicle"`
	Name  string  `json:"name" jsonschema:"model name of the remembered vehicle"`
	Price float64 `json:"price" jsonschema:"remembered price, used to pick the configuration"`
}

// HistoryMatchOutput defines the output schema for the history_match tool.
type HistoryMatchOutput struct {
	Found      bool    `json:"found" jsonschema:"whether the catalog still carries the vehicle"`
	DocumentID string  `json:"document_id,omitempty"`
	ConfigID   string  `json:"config_id,omitempty"`
	Display    string  `json:"display,omitempty"`
	Price      float64 `json:"price,omitempty"`
}

// CacheStatsInput defines the input schema for the cache_stats tool (no parameters).
type CacheStatsInput struct{}

// CacheStatsOutput defines the output schema for the cache_stats tool.
type CacheStatsOutput struct {
	Cache cache.Stats `json:"cache" jsonschema:"per-tier counters"`
	Index index.Stats `json:"index" jsonschema:"current index generation summary"`
}
