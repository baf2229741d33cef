package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/elimika/auditlog/jobs"
)

var jobSelector = regexp.MustCompile(`job="([^"]*)"`)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func loadAuditAlerts(t *testing.T) alertSpec {
	t.Helper()
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "audit.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}
	return spec
}

func TestAlertJobSelectorsMatchTaskTypes(t *testing.T) {
	known := map[string]bool{
		jobs.TaskAuditCacheInvalidate: true,
		jobs.TaskAuditRetention:       true,
	}
	spec := loadAuditAlerts(t)
	selectors := 0
	for _, group := range spec.Groups {
		for _, rule := range group.Rules {
			for _, match := range jobSelector.FindAllStringSubmatch(rule.Expr, -1) {
				selectors++
				if !known[match[1]] {
					t.Fatalf("rule %s selects job=%q, which no task type records", rule.Alert, match[1])
				}
			}
		}
	}
	if selectors == 0 {
		t.Fatal("expected at least one job selector in the alert rules")
	}
}

func TestAuditAlertRules(t *testing.T) {
	spec := loadAuditAlerts(t)

	if len(spec.Groups) == 0 {
		t.Fatal("expected at least one alert group")
	}

	var auditGroup *alertGroup
	for i := range spec.Groups {
		if spec.Groups[i].Name == "audit" {
			auditGroup = &spec.Groups[i]
			break
		}
	}
	if auditGroup == nil {
		t.Fatal("audit alert group missing")
	}

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"AuditHighErrorRate":    {severity: "critical", runbook: "docs/runbook-audit.md#high-error-rate"},
		"AuditCacheMissSpike":   {severity: "warning", runbook: "docs/runbook-audit.md#cache-miss-spike"},
		"AuditRetentionFailing": {severity: "warning", runbook: "docs/runbook-audit.md#retention-failing"},
	}

	if len(auditGroup.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(auditGroup.Rules))
	}

	for _, rule := range auditGroup.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.Expr == "" {
			t.Fatalf("rule %s must define an expression", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}
