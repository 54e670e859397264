package cli

import "fmt"

// ConfigError reports configuration that cannot drive the governance
// engine. Field names the offending yaml path when one can be named; a
// load failure that predates field resolution leaves it empty.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for the named field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// CommandError wraps a failure from one aegis subcommand with the
// subcommand's name, so the operator sees which stage failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("aegis %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err as a failure of the named subcommand.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ChainBrokenError is how the verify subcommand reports an audit chain
// that failed verification. Seq identifies the first record whose hash
// did not recompute, so the operator can pull the offending record.
type ChainBrokenError struct {
	Seq uint64
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("audit chain verification failed at sequence %d", e.Seq)
}
