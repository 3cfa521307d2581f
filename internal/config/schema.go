package config

import (
	"strconv"
	"strings"
)

// DisplayType tags how a property value is typed, validated and presented.
type DisplayType string

// Supported property display types.
const (
	DisplayString DisplayType = "string"
	DisplayNumber DisplayType = "number"
	DisplayBool   DisplayType = "bool"
)

// Property is one typed configuration entry. Key is immutable; Value is the
// raw string form and always passes validation for the display type.
type Property struct {
	Key          string      `json:"key"`
	FriendlyName string      `json:"friendly_name"`
	Value        string      `json:"value"`
	Display      DisplayType `json:"display_type"`
	Advanced     bool        `json:"advanced"`
}

type propertySpec struct {
	key        string
	friendly   string
	def        string
	display    DisplayType
	advanced   bool
	allowEmpty bool
}

// schema fixes the property set and its order. Keys never change meaning
// within a schema version; new knobs are appended.
var schema = []propertySpec{
	{key: "entry_urls", friendly: "Entry point URLs", def: "", display: DisplayString, allowEmpty: true},
	{key: "scan_pages", friendly: "Pages to scan for links", def: "", display: DisplayString, allowEmpty: true},
	{key: "pdf_path", friendly: "PDF path", def: "", display: DisplayString, allowEmpty: true},
	{key: "pdf_url", friendly: "PDF URL", def: "", display: DisplayString, allowEmpty: true},
	{key: "user_agent", friendly: "User agent", def: "linkrover/0.1", display: DisplayString},
	{key: "workers", friendly: "Worker pool size", def: "4", display: DisplayNumber, advanced: true},
	{key: "queue_depth", friendly: "Work queue depth", def: "64", display: DisplayNumber, advanced: true},
	{key: "probe_timeout_seconds", friendly: "Probe timeout (seconds)", def: "15", display: DisplayNumber},
	{key: "max_attempts", friendly: "Max probe attempts", def: "3", display: DisplayNumber},
	{key: "backoff_initial_ms", friendly: "Retry backoff initial (ms)", def: "250", display: DisplayNumber, advanced: true},
	{key: "backoff_max_ms", friendly: "Retry backoff max (ms)", def: "5000", display: DisplayNumber, advanced: true},
	{key: "grace_period_seconds", friendly: "Cancellation grace period (seconds)", def: "5", display: DisplayNumber, advanced: true},
	{key: "host_rps", friendly: "Per-host requests per second (0 = unlimited)", def: "0", display: DisplayNumber, advanced: true},
	{key: "keep_local_records", friendly: "Keep local records", def: "true", display: DisplayBool},
	{key: "gen_report", friendly: "Generate report after run", def: "true", display: DisplayBool},
	{key: "report_dir", friendly: "Report directory", def: "data/reports", display: DisplayString},
}

// validateValue checks raw against a display type. Number means a
// non-negative integer; Bool means the literals true or false.
func validateValue(spec propertySpec, raw string) error {
	switch spec.display {
	case DisplayString:
		if !spec.allowEmpty && strings.TrimSpace(raw) == "" {
			return &ValidationError{Key: spec.key, Value: raw, Reason: "value must not be empty"}
		}
	case DisplayNumber:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return &ValidationError{Key: spec.key, Value: raw, Reason: "value must be an integer"}
		}
		if n < 0 {
			return &ValidationError{Key: spec.key, Value: raw, Reason: "value must not be negative"}
		}
	case DisplayBool:
		if raw != "true" && raw != "false" {
			return &ValidationError{Key: spec.key, Value: raw, Reason: `value must be "true" or "false"`}
		}
	}
	return nil
}

// splitList parses a whitespace/comma separated list property.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
