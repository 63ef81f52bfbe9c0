package service

import (
	"math"

	"secureshare/internal/server/database"
	"secureshare/internal/server/scanner"
)

// ScanContext distinguishes where a verdict came from: the upload gate
// or an on-demand scan of an already-stored file. The two contexts have
// different enforcement consequences.
type ScanContext int

const (
	ContextUpload ScanContext = iota
	ContextOnDemand
)

// Action is the enforcement outcome of triage.
type Action int

const (
	ActionAllow      Action = iota // clean, proceed
	ActionFlag                     // malware below the enforcement threshold; record only
	ActionQuarantine               // isolate the stored file
	ActionBan                      // reject the upload and ban the uploader
)

// TriagePolicy holds the three enforcement thresholds on the 0-100 risk
// scale. Banning applies only in the upload context, quarantine only in
// the on-demand context; alerts fire in the on-demand context at or
// above AlertRisk.
type TriagePolicy struct {
	AlertRisk      int
	QuarantineRisk int
	BanRisk        int
}

// DefaultPolicy mirrors the enforcement thresholds the product shipped
// with: alert at MEDIUM, quarantine at 60, ban at confidence 0.5.
func DefaultPolicy() TriagePolicy {
	return TriagePolicy{AlertRisk: 50, QuarantineRisk: 60, BanRisk: 50}
}

// Decision is the policy outcome for one verdict.
type Decision struct {
	RiskScore   int
	ThreatLevel database.ThreatLevel
	Action      Action
	Alert       bool // user-visible threat alert warranted
}

// RiskScore projects a verdict onto the 0-100 risk scale. For malware
// the score is the classifier confidence; for clean files it is the
// residual doubt, reported but never acted on.
func RiskScore(v *scanner.Verdict) int {
	if v.IsMalware {
		return int(math.Round(v.Confidence * 100))
	}
	return int(math.Round((1 - v.Confidence) * 100))
}

// LevelForRisk buckets a risk score into a threat level. Clean verdicts
// are SAFE regardless of score.
func LevelForRisk(risk int, isMalware bool) database.ThreatLevel {
	if !isMalware {
		return database.ThreatSafe
	}
	switch {
	case risk >= 90:
		return database.ThreatCritical
	case risk >= 70:
		return database.ThreatHigh
	case risk >= 50:
		return database.ThreatMedium
	default:
		return database.ThreatLow
	}
}

// Evaluate maps a classifier verdict to an enforcement decision for the
// given context. It is pure: side effects are the caller's job.
func (p TriagePolicy) Evaluate(v *scanner.Verdict, sc ScanContext) Decision {
	d := Decision{
		RiskScore:   RiskScore(v),
		ThreatLevel: LevelForRisk(RiskScore(v), v.IsMalware),
	}
	if !v.IsMalware {
		return d
	}

	switch sc {
	case ContextUpload:
		if d.RiskScore >= p.BanRisk {
			d.Action = ActionBan
			d.Alert = true
		} else {
			d.Action = ActionFlag
		}
	case ContextOnDemand:
		if d.RiskScore >= p.QuarantineRisk {
			d.Action = ActionQuarantine
		} else {
			d.Action = ActionFlag
		}
		d.Alert = d.RiskScore >= p.AlertRisk
	}
	return d
}
