package common

import (
	"encoding/json"
	"io"
)

type CIResult struct {
	OK       bool     `json:"ok"`
	Title    string   `json:"title"`
	ExitCode int      `json:"exit_code"`
	Details  []string `json:"details,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// PrintCIResult writes one indented JSON result. message replaces the raw
// error text so callers decide what is safe to show.
func PrintCIResult(w io.Writer, title string, exitCode int, details []string, message string) error {
	result := CIResult{OK: exitCode == 0, Title: title, ExitCode: exitCode, Details: details, Error: message}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
