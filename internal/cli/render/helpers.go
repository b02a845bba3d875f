package render

import "github.com/fatih/color"

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// shortHex abbreviates long hex strings, e.g. 0x12345678…9abc
func shortHex(s string, keep int) string {
	if len(s) <= 2+2*keep+1 {
		return s
	}
	return s[:2+keep] + "…" + s[len(s)-keep:]
}
