package assets

import (
	"container/ring"
	"strings"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Protection levels for registered assets.
const (
	ProtectionHigh     = "high"
	ProtectionCritical = "critical"
)

// HealthHistorySize bounds each asset's recent threat-risk ring.
const HealthHistorySize = 100

// Asset is a static critical-infrastructure descriptor.
type Asset struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Ports           []int    `json:"ports"`
	ProtectionLevel string   `json:"protection_level"`
	Dependents      []string `json:"dependents,omitempty"`
}

// RiskEntry is one recorded qualifying threat-risk hit against an asset.
type RiskEntry struct {
	ThreatType model.ThreatType `json:"threat_type"`
	SourceIP   string           `json:"source_ip,omitempty"`
	RiskScore  float64          `json:"risk_score"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// Health is the runtime health record paired with an asset.
type Health struct {
	Status         string  `json:"status"`
	UptimeEstimate float64 `json:"uptime_estimate"`
	history        *ring.Ring
	retained       int
}

func newHealth() *Health {
	return &Health{
		Status:         "operational",
		UptimeEstimate: 99.9,
		history:        ring.New(HealthHistorySize),
	}
}

func (h *Health) record(entry RiskEntry) {
	h.history.Value = entry
	h.history = h.history.Next()
	if h.retained < HealthHistorySize {
		h.retained++
	}
	if entry.RiskScore > 0.8 {
		h.Status = "at_risk"
	}
}

// Recent returns the retained risk entries, oldest first.
func (h *Health) Recent() []RiskEntry {
	out := make([]RiskEntry, 0, h.retained)
	h.history.Do(func(v interface{}) {
		if entry, ok := v.(RiskEntry); ok {
			out = append(out, entry)
		}
	})
	return out
}

// categoryThreatTypes maps an asset category to the threat-type
// substrings it is considered sensitive to.
var categoryThreatTypes = map[string][]string{
	"database": {"exfiltration", "intrusion", "injection"},
	"web":      {"ddos", "intrusion"},
	"api":      {"ddos", "credential"},
	"auth":     {"credential", "intrusion"},
	"dns":      {"ddos", "suspicious"},
	"firewall": {"port scan", "suspicious"},
}

// typicalThreat reports whether a threat type is in the sensitivity set
// of an asset's category.
func typicalThreat(category string, threatType model.ThreatType) bool {
	lower := strings.ToLower(string(threatType))
	for _, needle := range categoryThreatTypes[category] {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// DefaultRegistry returns the static critical asset registry.
func DefaultRegistry() []Asset {
	return []Asset{
		{
			ID:              "asset-db-primary",
			Name:            "Primary Database Cluster",
			Category:        "database",
			Ports:           []int{3306, 5432, 27017},
			ProtectionLevel: ProtectionCritical,
		},
		{
			ID:              "asset-web-frontend",
			Name:            "Web Frontend",
			Category:        "web",
			Ports:           []int{80, 443},
			ProtectionLevel: ProtectionHigh,
			Dependents:      []string{"asset-api-gateway"},
		},
		{
			ID:              "asset-api-gateway",
			Name:            "API Gateway",
			Category:        "api",
			Ports:           []int{443, 8080},
			ProtectionLevel: ProtectionCritical,
			Dependents:      []string{"asset-db-primary"},
		},
		{
			ID:              "asset-identity",
			Name:            "Identity Provider",
			Category:        "auth",
			Ports:           []int{88, 389, 636},
			ProtectionLevel: ProtectionCritical,
		},
		{
			ID:              "asset-dns-internal",
			Name:            "Internal DNS",
			Category:        "dns",
			Ports:           []int{53},
			ProtectionLevel: ProtectionHigh,
		},
		{
			ID:              "asset-perimeter-fw",
			Name:            "Perimeter Firewall",
			Category:        "firewall",
			Ports:           []int{22},
			ProtectionLevel: ProtectionCritical,
		},
	}
}
