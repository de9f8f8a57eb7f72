// Package agent defines agent-builder definitions and the background job
// that deploys them.
package agent

import (
	"sort"
	"strings"
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
)

const (
	StatusDraft     = "draft"
	StatusDeploying = "deploying"
	StatusDeployed  = "deployed"
	StatusFailed    = "failed"
)

// Tools an agent may be granted.
var knownTools = map[string]bool{
	"patient-search":     true,
	"appointment-lookup": true,
	"eligibility-check":  true,
	"claim-status":       true,
	"work-queue":         true,
	"knowledge-base":     true,
}

// KnownTools lists the grantable tools in sorted order.
func KnownTools() []string {
	out := make([]string, 0, len(knownTools))
	for t := range knownTools {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type Agent struct {
	crud.Meta
	Name            string     `json:"name" validate:"required,max=120"`
	Description     string     `json:"description,omitempty"`
	Instructions    string     `json:"instructions" validate:"required"`
	Model           string     `json:"model" validate:"required"`
	Tools           []string   `json:"tools,omitempty"`
	Temperature     float64    `json:"temperature" validate:"gte=0,lte=2"`
	Status          string     `json:"status" validate:"required,oneof=draft deploying deployed failed"`
	Endpoint        string     `json:"endpoint,omitempty"`
	DeployedVersion int        `json:"deployed_version,omitempty"`
	BundleDigest    string     `json:"bundle_digest,omitempty"`
	DeployedAt      *time.Time `json:"deployed_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

var Kind = (&crud.Kind[*Agent]{
	Name:         "agents",
	ResourceType: "Agent",
	New:          func() *Agent { return &Agent{} },
	Defaults: func(a *Agent) {
		if a.Status == "" {
			a.Status = StatusDraft
		}
		for i, t := range a.Tools {
			a.Tools[i] = strings.ToLower(strings.TrimSpace(t))
		}
	},
	Validate: validateTools,
	Filters: map[string]crud.Filter{
		"status": crud.Equal("status"),
		"model":  crud.Equal("model"),
		"name":   crud.Contains("name"),
	},
}).MustCheck()

func validateTools(a *Agent) error {
	seen := make(map[string]bool, len(a.Tools))
	for _, t := range a.Tools {
		if !knownTools[t] {
			return crud.NewFieldError("tools", "unknown tool %q", t)
		}
		if seen[t] {
			return crud.NewFieldError("tools", "duplicate tool %q", t)
		}
		seen[t] = true
	}
	return nil
}
