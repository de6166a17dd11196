package sbom

import (
	"fmt"
	"strings"

	"github.com/yorozuya-cybersecurity/bome/internal/schema"
)

var severityOrder = []string{"critical", "high", "medium", "low", "other"}

// Summary counts what a projected document will contain
type Summary struct {
	AppDependencies       int
	OSDependencies        int
	ContainerDependencies int
	Severities            map[string]int
}

func (s Summary) Components() int {
	return s.AppDependencies + s.OSDependencies + s.ContainerDependencies
}

func (s Summary) Vulnerabilities() int {
	total := 0
	for _, c := range s.Severities {
		total += c
	}
	return total
}

// String renders counts in a fixed severity order, e.g.
// "3 components (app=2 os=1 container=0), 1 vulnerabilities (critical=0 high=1 ...)"
func (s Summary) String() string {
	parts := make([]string, 0, len(severityOrder))
	for _, sev := range severityOrder {
		parts = append(parts, fmt.Sprintf("%s=%d", sev, s.Severities[sev]))
	}
	return fmt.Sprintf("%d components (app=%d os=%d container=%d), %d vulnerabilities (%s)",
		s.Components(), s.AppDependencies, s.OSDependencies, s.ContainerDependencies,
		s.Vulnerabilities(), strings.Join(parts, " "))
}

// Summarize counts components per category and vulnerabilities per severity.
// Severities outside the known set, or missing, count as "other".
func Summarize(bom schema.BOM) Summary {
	counts := map[string]int{}
	for _, v := range bom.Vulnerabilities {
		counts[severityOf(v)]++
	}

	return Summary{
		AppDependencies:       len(bom.AppDependencies),
		OSDependencies:        len(bom.OSDependencies),
		ContainerDependencies: len(bom.ContainerDependencies),
		Severities:            normalizeCounts(counts, severityOrder),
	}
}

func severityOf(v schema.Vulnerability) string {
	raw, _ := v.Get("severity")
	s, _ := raw.AsString()
	s = strings.ToLower(strings.TrimSpace(s))
	if indexOf(severityOrder, s) == len(severityOrder) {
		return "other"
	}
	return s
}

func indexOf(arr []string, s string) int {
	for i, v := range arr {
		if v == s {
			return i
		}
	}
	return len(arr)
}

func normalizeCounts(in map[string]int, order []string) map[string]int {
	out := make(map[string]int, len(order))
	for _, k := range order {
		out[k] = in[k]
	}
	return out
}
