package types

import "time"

// ComplianceCheck is the most recent regulatory review of a proof. Checks are
// created lazily on first review and overwritten wholesale by re-reviews
// before finalization (last review wins; there is no version history).
type ComplianceCheck struct {
	ProofID          ProofID   `json:"proof_id"`
	HIPAACompliant   bool      `json:"hipaa_compliant"`
	GDPRCompliant    bool      `json:"gdpr_compliant"`
	ResearchApproved bool      `json:"research_approved"`
	Violations       []string  `json:"violations,omitempty"`
	Reviewer         Identity  `json:"reviewer"`
	ReviewedAt       time.Time `json:"reviewed_at"`
}

// IsCompliant derives the pass/fail outcome. Research approval is recorded
// but does not gate compliance; only HIPAA, GDPR and an empty violation list
// do.
func (c *ComplianceCheck) IsCompliant() bool {
	return c.HIPAACompliant && c.GDPRCompliant && len(c.Violations) == 0
}

// Status maps the check outcome onto the proof's compliance dimension.
func (c *ComplianceCheck) Status() ComplianceStatus {
	if c.IsCompliant() {
		return ComplianceCompliant
	}
	return ComplianceNonCompliant
}
