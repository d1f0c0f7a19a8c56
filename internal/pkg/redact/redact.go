// redact — маскирование чувствительных значений в логах.
package redact

import "strings"

// Email маскирует локальную часть адреса, оставляя первые две руны и домен.
// Невалидный адрес маскируется полностью.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	masked := "***"
	if len(local) > 2 {
		masked = string(local[:2]) + "***"
	}

	return masked + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
