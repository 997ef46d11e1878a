package parse

import (
	"regexp"

	"github.com/ignite/alertops/internal/domain"
)

// Rule is one deterministic classification rule, matched against the
// combined subject and body before the text generator runs.
type Rule struct {
	Name     string
	patterns []*regexp.Regexp
	Priority domain.Priority
	Type     domain.AlertType
}

func newRule(name string, priority domain.Priority, typ domain.AlertType, patterns ...string) Rule {
	r := Rule{Name: name, Priority: priority, Type: typ}
	for _, p := range patterns {
		r.patterns = append(r.patterns, regexp.MustCompile("(?i)"+p))
	}
	return r
}

// rules are ordered: the first match wins. The graceful-shutdown rule is
// first so a "machine down (shut down gracefully)" subject never matches
// the computer-down rule.
var rules = []Rule{
	newRule("Machine Shutdown Gracefully", domain.PriorityInformational, domain.TypeInformational,
		`machine\s*shut\s*down\s*gracefully`,
		`shut\s*down\s*gracefully`),
	newRule("Computer Down", domain.PriorityP1, domain.TypeActionable,
		`machine.*down`,
		`computer.*down`,
		`server.*down`,
		`machine.*unreachable`),
	newRule("Service Down/Stopped", domain.PriorityP1, domain.TypeActionable,
		`service.*(down|stopped)`),
	newRule("Critical Resource Exhaustion", domain.PriorityP1, domain.TypeActionable,
		`cpu.*greater.*than.*equal.*95`,
		`memory.*utilization.*greater.*than.*equal.*95`,
		`disk.*queue.*greater.*than.*equal`,
		`storage.*latency.*greater.*than.*equal`),
	newRule("Network / Load Balancer Degraded", domain.PriorityP1, domain.TypeActionable,
		`lb.*degraded`),
	newRule("Low Disk Space Warning", domain.PriorityP2, domain.TypeActionable,
		`less.*(5|15).*gb`,
		`free.*space.*(<=|less.*than)`,
		`free.*capacity.*(<=|less.*than).*10%`),
	newRule("Services Up / Restored", domain.PriorityP2, domain.TypeActionable,
		`lb.*restored`,
		`service.*(up|started|restored)`),
	newRule("Informational", domain.PriorityInformational, domain.TypeInformational,
		`windows.*event.*custom.*filter`,
		`certificate.*expiration`,
		`process.*ended`),
}

// MatchRule returns the first rule matching the combined subject and body,
// or nil when no deterministic rule applies and the text generator must
// decide.
func MatchRule(subject, body string) *Rule {
	text := subject + " " + body
	for i := range rules {
		for _, p := range rules[i].patterns {
			if p.MatchString(text) {
				return &rules[i]
			}
		}
	}
	return nil
}
