package errors

import (
	"fmt"
	"strings"
)

// DefaultPreface opens a HelpfulError when no preface is given.
const DefaultPreface = "An error ocurred"

// HelpfulError explains a failure to an operator together with a suggested
// fix. It is used for startup and bot-facing failures where a stack of causes
// is less useful than a plain instruction.
type HelpfulError struct {
	Preface  string
	Issue    string
	Solution string
	Footnote string
	Cause    error
}

// Error renders the message in its multi-line form.
func (e *HelpfulError) Error() string {
	preface := strings.TrimSpace(e.Preface)
	if preface == "" {
		preface = DefaultPreface
	}
	return fmt.Sprintf("\n%s\n\tProblem: %s\n\n\tSolution: %s\n\n%s", preface, e.Issue, e.Solution, e.Footnote)
}

// Unwrap returns the underlying cause.
func (e *HelpfulError) Unwrap() error {
	return e.Cause
}

// Helpful builds a HelpfulError with the default preface.
func Helpful(issue, solution string) *HelpfulError {
	return &HelpfulError{Issue: issue, Solution: solution}
}

// DiscordAPIError is a failed call against the Discord REST API.
type DiscordAPIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	// DiscordCode is the JSON error code Discord returned, zero when absent.
	DiscordCode int
	Message     string
	Cause       error
}

// Error implements the error interface.
func (e *DiscordAPIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "discord api: %s %s", e.Method, e.Endpoint)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.DiscordCode != 0 {
		fmt.Fprintf(&b, " (code %d)", e.DiscordCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *DiscordAPIError) Unwrap() error {
	return e.Cause
}

// AsDomain converts the failure into a domain error so it can be rendered
// through the localized catalogs.
func (e *DiscordAPIError) AsDomain() *Error {
	return WrapWithMetadata(CodeDiscordAPI, e.Error(), map[string]string{
		"Endpoint": e.Endpoint,
		"Status":   fmt.Sprintf("%d", e.StatusCode),
	}, e)
}
