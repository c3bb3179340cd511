// internal/output/interface.go
package output

import "io"

// LoggerInterface defines the CLI feedback interface used by commands.
type LoggerInterface interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Success(format string, args ...interface{})
	Bold(format string, args ...interface{})
	Println(format string, args ...interface{})
	Field(label string, value interface{})
	JSON(v interface{}) error

	SetVerbose(verbose bool)
	SetNoColor(noColor bool)
	SetJSONMode(jsonMode bool)
	IsVerbose() bool
	IsJSONMode() bool

	Writer() io.Writer
	ErrWriter() io.Writer

	PrintErrorWithSuggestion(err error, suggestion string)
}

// Verify that Logger implements LoggerInterface at compile time.
var _ LoggerInterface = (*Logger)(nil)
