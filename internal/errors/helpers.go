package errors

import (
	"fmt"
	"strings"
)

// ConfigNotFound returns an error for when the config file is not found
func ConfigNotFound(fileName string) *Error {
	return New(ErrConfigNotFound, "Configuration file not found").
		WithContext("File", fileName).
		WithFixes(
			"Run 'buildhooks init' to create a new configuration",
			"Make sure you're in the correct project directory",
			"Or pass an explicit path with --config",
		)
}

// ConfigInvalid returns an error for invalid config file
func ConfigInvalid(reason string, cause error) *Error {
	err := New(ErrConfigInvalid, "Configuration file is invalid").
		WithContext("Reason", reason).
		WithFixes(
			"Check the YAML syntax in buildhooks.yml",
			"Run 'buildhooks validate' to see the normalized hooks",
		)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}

// ConfigExists returns an error when trying to init but config already exists
func ConfigExists(path string) *Error {
	return New(ErrConfigExists, "Configuration already exists").
		WithContext("File", path).
		WithFixes(
			"Use --force to overwrite existing config",
			"Or edit buildhooks.yml manually",
		)
}

// InvalidTaskSet returns the configuration error raised when a task set asks
// to be both parallel and blocking
func InvalidTaskSet(phase string) *Error {
	err := New(ErrInvalidTaskSet, "Task set cannot be both parallel and blocking")
	if phase != "" {
		err = err.WithContext("Phase", phase)
	}
	return err.WithFixes(
		"Set blocking: false to start every script without waiting",
		"Or set parallel: false to run scripts one after another",
	)
}

// TaskFailed returns an error for a task that ran and failed
func TaskFailed(task string, cause error) *Error {
	return New(ErrTaskFailed, fmt.Sprintf("Task '%s' failed", task)).
		WithContext("Task", task).
		WithCause(cause)
}

// SpawnFailed returns an error for a command that could not be started
func SpawnFailed(command string, cause error) *Error {
	err := New(ErrSpawnFailed, fmt.Sprintf("Failed to start '%s'", command)).
		WithContext("Command", command).
		WithCause(cause)

	if cause == nil {
		return err
	}
	msg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(msg, "executable file not found") || strings.Contains(msg, "no such file"):
		err = err.WithFixes(
			fmt.Sprintf("Check that '%s' is installed and on your PATH", command),
			"Use safe: true if the script relies on shell builtins or syntax",
		)
	case strings.Contains(msg, "permission denied"):
		err = err.WithFix(fmt.Sprintf("Make '%s' executable: chmod +x %s", command, command))
	}
	return err
}

// BuildFailed returns an error for a failing build command
func BuildFailed(command string, cause error) *Error {
	return New(ErrBuildFailed, "Build failed").
		WithContext("Command", command).
		WithCause(cause)
}

// SessionLocked returns an error when another watch session holds the lock
func SessionLocked(lockPath string) *Error {
	return New(ErrSessionLocked, "Another watch session is already running").
		WithContext("Lock", lockPath).
		WithFixes(
			"Stop the other 'buildhooks watch' process",
			fmt.Sprintf("Remove %s if no session is running", lockPath),
		)
}

// EnvParseFailed returns an error for an env file that cannot be parsed
func EnvParseFailed(path string, cause error) *Error {
	return New(ErrEnvParseFailed, "Failed to parse environment file").
		WithContext("File", path).
		WithCause(cause).
		WithFix("Check the dotenv syntax of the file")
}
