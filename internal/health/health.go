package health

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Status represents the health check result status
type Status string

const (
	// StatusPass indicates the check passed
	StatusPass Status = "pass"
	// StatusWarn indicates the check passed with warnings
	StatusWarn Status = "warn"
	// StatusError indicates the check failed
	StatusError Status = "error"
)

// Severity returns the numeric severity of a status (higher is worse)
func (s Status) Severity() int {
	switch s {
	case StatusWarn:
		return 1
	case StatusError:
		return 2
	default:
		return 0
	}
}

// Check is the outcome of one diagnostic
type Check struct {
	Name        string   `json:"name"`
	Status      Status   `json:"status"`
	Message     string   `json:"message"`
	FixAction   string   `json:"fixAction,omitempty"`
	Details     []string `json:"details,omitempty"`
	ErrorString string   `json:"error,omitempty"`
}

// NewCheck creates a new health check result
func NewCheck(name string, status Status, message string) Check {
	return Check{Name: name, Status: status, Message: message}
}

// WithStatus returns a copy of the check with status
func (c Check) WithStatus(status Status) Check {
	c.Status = status
	return c
}

// WithMessage returns a copy of the check with message
func (c Check) WithMessage(message string) Check {
	c.Message = message
	return c
}

// WithDetails adds details to a check
func (c Check) WithDetails(details ...string) Check {
	c.Details = append(c.Details, details...)
	return c
}

// WithFixAction adds a fix action to a check
func (c Check) WithFixAction(action string) Check {
	c.FixAction = action
	return c
}

// WithError adds an error string to a check
func (c Check) WithError(err error) Check {
	if err != nil {
		c.ErrorString = err.Error()
	}
	return c
}

// Result aggregates the checks of one doctor run
type Result struct {
	Checks   []Check `json:"checks"`
	Passed   int     `json:"passed"`
	Warnings int     `json:"warnings"`
	Errors   int     `json:"errors"`
	ExitCode int     `json:"exitCode"`
}

// NewResult creates an empty result
func NewResult() *Result {
	return &Result{Checks: make([]Check, 0)}
}

// AddCheck records a check and updates the counters
func (r *Result) AddCheck(check Check) {
	r.Checks = append(r.Checks, check)

	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusError:
		r.Errors++
	}
	r.ExitCode = r.DetermineExitCode()
}

// DetermineExitCode calculates the exit code based on check results
// 0 = all pass, 1 = warnings, 2 = errors
func (r *Result) DetermineExitCode() int {
	switch {
	case r.Errors > 0:
		return 2
	case r.Warnings > 0:
		return 1
	default:
		return 0
	}
}

// Format renders the result for a terminal, worst checks first
func (r *Result) Format(verbose bool) string {
	var sb strings.Builder
	bold := color.New(color.Bold).SprintFunc()

	overall := color.GreenString("HEALTHY")
	switch {
	case r.Errors > 0:
		overall = color.RedString("UNHEALTHY")
	case r.Warnings > 0:
		overall = color.YellowString("WARNINGS")
	}

	fmt.Fprintf(&sb, "\n%s\n%s\n\n", bold("buildhooks doctor"), strings.Repeat("=", 40))
	fmt.Fprintf(&sb, "Overall: %s (%d passed, %d warnings, %d errors)\n\n", overall, r.Passed, r.Warnings, r.Errors)

	checks := make([]Check, len(r.Checks))
	copy(checks, r.Checks)
	sort.SliceStable(checks, func(i, j int) bool {
		return checks[i].Status.Severity() > checks[j].Status.Severity()
	})

	for _, check := range checks {
		icon, paint := statusDisplay(check.Status)
		fmt.Fprintf(&sb, "%s %s: %s\n", icon, bold(check.Name), paint("%s", string(check.Status)))
		if check.Message != "" {
			fmt.Fprintf(&sb, "  %s\n", check.Message)
		}
		if verbose || check.Status != StatusPass {
			for _, detail := range check.Details {
				fmt.Fprintf(&sb, "  - %s\n", detail)
			}
		}
		if check.FixAction != "" {
			fmt.Fprintf(&sb, "  %s Fix: %s\n", color.CyanString("ℹ"), check.FixAction)
		}
		if verbose && check.ErrorString != "" {
			fmt.Fprintf(&sb, "  Error: %s\n", color.RedString(check.ErrorString))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatJSON formats the result as JSON
func (r *Result) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(data), nil
}

func statusDisplay(status Status) (string, func(format string, a ...interface{}) string) {
	switch status {
	case StatusPass:
		return "✓", color.GreenString
	case StatusWarn:
		return "⚠", color.YellowString
	case StatusError:
		return "✗", color.RedString
	default:
		return "?", color.WhiteString
	}
}
