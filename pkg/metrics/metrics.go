// Package metrics holds the prometheus collectors exported by the binaries.
package metrics

const namespace = "mercadito"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
