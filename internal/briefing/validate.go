package briefing

import (
	"regexp"
)

// SecurityReport is the result of scanning a player-visible text for leaked
// mission structure.
type SecurityReport struct {
	IsSecure        bool     `json:"is_secure"`
	ExposedSections []string `json:"exposed_sections"`
	Warnings        []string `json:"warnings"`
}

type probe struct {
	section string
	warning string
	re      *regexp.Regexp
}

// probes are an independent second pass over the redactor's output. They catch
// generator format drift the marker list in redact.go does not know about.
var probes = []probe{
	{
		section: "phase structure",
		warning: "briefing exposes the mission phase plan",
		re:      regexp.MustCompile(`(?i)(MISSION PHASES|DETAILED PHASES|PHASE\s+\d+\s*[:\-])`),
	},
	{
		section: "round markers",
		warning: "briefing exposes per-round instructions",
		re:      regexp.MustCompile(`(?i)\bR\d+\s*:`),
	},
	{
		section: "success criteria",
		warning: "briefing exposes success criteria",
		re:      regexp.MustCompile(`(?i)SUCCESS (CRITERIA|CONDITIONS)`),
	},
	{
		section: "failure conditions",
		warning: "briefing exposes failure conditions",
		re:      regexp.MustCompile(`(?i)FAILURE CONDITIONS`),
	},
	{
		section: "outcome definitions",
		warning: "briefing exposes outcome definitions",
		re:      regexp.MustCompile(`(?i)(FOUR POSSIBLE OUTCOMES|OUTCOME\s+[A-D]\s*[:(])`),
	},
	{
		section: "outcome score bands",
		warning: "briefing exposes outcome percentage bands",
		re:      regexp.MustCompile(`\d{1,3}\s*[-–]\s*\d{1,3}\s*%`),
	},
	{
		section: "outcome descriptors",
		warning: "briefing exposes outcome descriptor phrases",
		re:      regexp.MustCompile(`(?i)(Complete mission success|Partial success with complications|Mission failure but operative extracts|Mission failure with serious consequences)`),
	},
}

// Validate re-scans a redacted briefing for leaked sensitive patterns.
// IsSecure is true iff no probe matches. Callers must fail closed on an
// insecure report at mission-generation time.
func Validate(playerText string) SecurityReport {
	report := SecurityReport{
		IsSecure:        true,
		ExposedSections: []string{},
		Warnings:        []string{},
	}
	for _, p := range probes {
		if p.re.MatchString(playerText) {
			report.IsSecure = false
			report.ExposedSections = append(report.ExposedSections, p.section)
			report.Warnings = append(report.Warnings, p.warning)
		}
	}
	return report
}
