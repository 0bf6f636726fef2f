// Package logging configures slog for autoprice.
//
// CLI commands log warnings to stderr. With --debug, and always under
// `autoprice serve`, JSON logs go to a rotating file in ~/.autoprice/logs/.
// The MCP stdio transport owns stdout, so serve mode never writes to stdout
// or stderr.
package logging
