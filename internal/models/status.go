package models

// Canonical vehicle statuses. These strings are persisted verbatim.
const (
	StatusWorking     = "作业中"
	StatusWaiting     = "待命"
	StatusMaintenance = "维保中"
	StatusFault       = "故障中"
)

// Statuses lists the canonical statuses in display order
var Statuses = []string{StatusWorking, StatusWaiting, StatusMaintenance, StatusFault}

// statusAliases maps symbolic tokens and canonical strings to canonical statuses
var statusAliases = map[string]string{
	"working":         StatusWorking,
	"waiting":         StatusWaiting,
	"maintenance":     StatusMaintenance,
	"fault":           StatusFault,
	StatusWorking:     StatusWorking,
	StatusWaiting:     StatusWaiting,
	StatusMaintenance: StatusMaintenance,
	StatusFault:       StatusFault,
}

// NormalizeStatus resolves a status token to its canonical form.
// Unknown tokens are returned unchanged with ok=false.
func NormalizeStatus(token string) (status string, ok bool) {
	if s, found := statusAliases[token]; found {
		return s, true
	}
	return token, false
}

// IsCanonicalStatus reports whether s is one of the four canonical statuses
func IsCanonicalStatus(s string) bool {
	for _, status := range Statuses {
		if status == s {
			return true
		}
	}
	return false
}
