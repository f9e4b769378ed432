// Package pipeline turns a workbook into the combined, filtered project table.
package pipeline

import "strings"

// SheetPolicy decides which workbook sheets are offered for selection.
// Allow, when non-empty, is an exact allowlist. Deny and DenyContains reject
// sheets by exact name and by substring respectively.
type SheetPolicy struct {
	Allow        []string
	Deny         []string
	DenyContains []string
}

// DefaultSheetPolicy hides the demo and skills sheets of the tracker workbook.
func DefaultSheetPolicy() SheetPolicy {
	return SheetPolicy{Deny: []string{"April 2025(Demo)", "Skill Set"}}
}

// Allowed reports whether the named sheet passes the policy.
func (p SheetPolicy) Allowed(name string) bool {
	if len(p.Allow) > 0 && !containsString(p.Allow, name) {
		return false
	}
	if containsString(p.Deny, name) {
		return false
	}
	for _, sub := range p.DenyContains {
		if sub != "" && strings.Contains(name, sub) {
			return false
		}
	}
	return true
}

// Eligible filters names in workbook order.
func (p SheetPolicy) Eligible(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if p.Allowed(n) {
			out = append(out, n)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
