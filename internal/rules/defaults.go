package rules

// DefaultCatalog returns the built-in rule set, in evaluation order.
// The DDoS detection rule matches on its stated condition only; the
// upstream variant also fired on a 30% random chance, which was judged
// test-stub residue and is not carried (see DESIGN.md).
func DefaultCatalog() []Rule {
	return []Rule{
		{
			ID:   "ddos-detection",
			Name: "DDoS Detection",
			Condition: Condition{All: []Condition{
				{TypeIs: "Suspicious Connection"},
				{SeverityIs: "High"},
			}},
			Action:  Action{Kind: ActionEscalate, Params: map[string]string{"to": "Critical"}},
			Enabled: true,
		},
		{
			ID:        "privilege-escalation",
			Name:      "Privilege Escalation Attempt",
			Condition: Condition{DescriptionContainsAny: []string{"privilege", "sudo", "admin"}},
			Action:    Action{Kind: ActionAlert, Params: map[string]string{"channel": "security-ops"}},
			Enabled:   true,
		},
		{
			ID:        "data-exfiltration",
			Name:      "Data Exfiltration",
			Condition: Condition{DescriptionContainsAny: []string{"data", "exfiltrat", "transfer"}},
			Action:    Action{Kind: ActionIsolate, Params: map[string]string{"duration": "30m"}},
			Enabled:   true,
		},
		{
			ID:        "brute-force",
			Name:      "Brute Force Target Port",
			Condition: Condition{PortIn: []int{22, 3389, 5900}},
			Action:    Action{Kind: ActionBlockIP, Params: map[string]string{"duration": "1h"}},
			Enabled:   true,
		},
		{
			ID:        "malware-signature",
			Name:      "Malware Signature",
			Condition: Condition{DescriptionContainsAny: []string{"malware", "trojan", "ransomware", "virus", "worm"}},
			Action:    Action{Kind: ActionQuarantine, Params: map[string]string{"scope": "host"}},
			Enabled:   true,
		},
		{
			ID:        "sql-injection",
			Name:      "SQL Injection",
			Condition: Condition{DescriptionContainsAny: []string{"sql", "injection", "union select"}},
			Action:    Action{Kind: ActionAlert, Params: map[string]string{"severity": "High"}},
			Enabled:   true,
		},
		{
			ID:        "port-scanning",
			Name:      "Port Scanning",
			Condition: Condition{DescriptionContainsAll: []string{"port", "scan"}},
			Action:    Action{Kind: ActionMonitor, Params: map[string]string{"duration": "24h"}},
			Enabled:   true,
		},
		{
			ID:        "critical-service",
			Name:      "Critical Service Target",
			Condition: Condition{PortIn: []int{80, 443, 3306, 5432, 27017}},
			Action:    Action{Kind: ActionIncreasePriority, Params: map[string]string{"level": "1"}},
			Enabled:   true,
		},
	}
}
