package types

import "fmt"

// Role is a bitmask of the capabilities an identity holds. An identity may
// hold several roles at once (an admin that also validates, say).
type Role uint8

const (
	RoleValidator Role = 1 << iota
	RoleRelayer
	RoleComplianceReviewer
	RoleAdmin
)

// Has reports whether r includes every role in want.
func (r Role) Has(want Role) bool { return r&want == want }

func (r Role) String() string {
	switch r {
	case RoleValidator:
		return "validator"
	case RoleRelayer:
		return "relayer"
	case RoleComplianceReviewer:
		return "compliance_reviewer"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ValidatorStats is the per-validator reputation view returned by read
// queries. Reputation counts approving votes that were accepted into a vote
// set; rejections consume the validator's vote allowance without earning
// reputation.
type ValidatorStats struct {
	Validator  Identity `json:"validator"`
	Reputation uint64   `json:"reputation"`
}
