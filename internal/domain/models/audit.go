package models

import "time"

// Permission strings checked against an actor's capability set.
// Static enum, evaluated by HasPermission; no runtime reflection.
const (
	PermSignalApprove  = "signal:approve"
	PermSignalReject   = "signal:reject"
	PermSignalFlag     = "signal:flag"
	PermSignalAdjust   = "signal:adjust"
	PermOracleUpdate   = "oracle:update"
	PermNodeManage     = "node:manage"
	PermRuleManage     = "rule:manage"
	PermRebuildTrigger = "rebuild:trigger"
	PermConsensusTune  = "consensus:configure"
	PermOpsControl     = "ops:control"
)

// roleCapabilities maps back-office roles to their permission sets.
// Callers are already authenticated; only the capability check lives here.
var roleCapabilities = map[string][]string{
	"operator": {PermSignalFlag},
	"reviewer": {PermSignalApprove, PermSignalReject, PermSignalFlag, PermSignalAdjust},
	"admin": {
		PermSignalApprove, PermSignalReject, PermSignalFlag, PermSignalAdjust,
		PermOracleUpdate, PermNodeManage, PermRuleManage, PermRebuildTrigger,
		PermConsensusTune, PermOpsControl,
	},
}

// HasPermission reports whether role carries perm.
func HasPermission(role, perm string) bool {
	for _, p := range roleCapabilities[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// AuditEntry records one admin override of automated state. The trail
// is append-only and authoritative for compliance.
type AuditEntry struct {
	ID          string
	Actor       string
	Action      string
	EntityType  string // "signal", "source", "node", "rule", "rebuild"
	EntityID    string
	BeforeState string
	AfterState  string
	Reason      string
	CreatedAt   time.Time
}
