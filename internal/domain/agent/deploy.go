package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/internal/platform/jobs"
)

// DeployJobKind is the job kind handled by Deployer.
const DeployJobKind = "agent.deploy"

// DeployInput is the job input.
type DeployInput struct {
	AgentID string `json:"agent_id"`
}

// DeployResult is stored on the succeeded job.
type DeployResult struct {
	AgentID  string `json:"agent_id"`
	Version  int    `json:"version"`
	Digest   string `json:"digest"`
	Endpoint string `json:"endpoint"`
}

// Deployer runs agent.deploy jobs: validate, package, activate.
type Deployer struct {
	svc *crud.Service[*Agent]
	// StepDelay paces the stages; zero runs them back to back.
	StepDelay time.Duration
	now       func() time.Time
}

func NewDeployer(svc *crud.Service[*Agent]) *Deployer {
	return &Deployer{svc: svc, StepDelay: 500 * time.Millisecond, now: time.Now}
}

var _ jobs.Runner = (*Deployer)(nil)

func parseInput(input json.RawMessage) (uuid.UUID, error) {
	var in DeployInput
	if len(input) == 0 {
		return uuid.Nil, crud.NewFieldError("agent_id", "is required")
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return uuid.Nil, crud.NewFieldError("input", "must be an object")
	}
	if in.AgentID == "" {
		return uuid.Nil, crud.NewFieldError("agent_id", "is required")
	}
	id, err := uuid.Parse(in.AgentID)
	if err != nil {
		return uuid.Nil, crud.NewFieldError("agent_id", "must be a valid UUID")
	}
	return id, nil
}

// Validate rejects bad input and agents that are missing or mid-deploy.
func (d *Deployer) Validate(ctx context.Context, input json.RawMessage) error {
	id, err := parseInput(input)
	if err != nil {
		return err
	}
	a, err := d.svc.Get(ctx, id)
	if errors.Is(err, crud.ErrNotFound) {
		return crud.NewFieldError("agent_id", "agent not found")
	}
	if err != nil {
		return err
	}
	if a.Status == StatusDeploying {
		return crud.NewFieldError("agent_id", "agent is already deploying")
	}
	return nil
}

func (d *Deployer) Run(ctx context.Context, input json.RawMessage, report jobs.Reporter) (interface{}, error) {
	id, err := parseInput(input)
	if err != nil {
		return nil, err
	}

	a, err := d.mutate(ctx, id, func(a *Agent) {
		a.Status = StatusDeploying
		a.LastError = ""
	})
	if err != nil {
		return nil, fmt.Errorf("mark agent deploying: %w", err)
	}

	result, runErr := d.stages(ctx, a, report)
	if runErr != nil {
		msg := runErr.Error()
		if ctx.Err() != nil {
			msg = "deployment cancelled"
		}
		// The job context may be done; the agent still has to leave deploying.
		if _, err := d.mutate(context.WithoutCancel(ctx), id, func(a *Agent) {
			a.Status = StatusFailed
			a.LastError = msg
		}); err != nil {
			return nil, errors.Join(runErr, err)
		}
		return nil, runErr
	}
	return result, nil
}

func (d *Deployer) stages(ctx context.Context, a *Agent, report jobs.Reporter) (*DeployResult, error) {
	report.Progress(10, "validating definition")
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Instructions) == "" {
		return nil, errors.New("instructions are empty")
	}
	if err := validateTools(a); err != nil {
		return nil, err
	}

	report.Progress(40, "packaging bundle")
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	digest, err := bundleDigest(a)
	if err != nil {
		return nil, err
	}

	report.Progress(70, "activating endpoint")
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	version := a.DeployedVersion + 1
	endpoint := fmt.Sprintf("/agents/%s/v%d/invoke", a.ID, version)
	deployedAt := d.now().UTC()

	if _, err := d.mutate(ctx, a.ID, func(a *Agent) {
		a.Status = StatusDeployed
		a.DeployedVersion = version
		a.BundleDigest = digest
		a.Endpoint = endpoint
		a.DeployedAt = &deployedAt
	}); err != nil {
		return nil, fmt.Errorf("activate agent: %w", err)
	}
	report.Progress(95, "deployed")

	return &DeployResult{AgentID: a.ID.String(), Version: version, Digest: digest, Endpoint: endpoint}, nil
}

func (d *Deployer) wait(ctx context.Context) error {
	if d.StepDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.StepDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mutate re-reads the agent, applies fn and writes it back through the
// service so observers see the change.
func (d *Deployer) mutate(ctx context.Context, id uuid.UUID, fn func(*Agent)) (*Agent, error) {
	a, err := d.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(a)
	if err := d.svc.Update(ctx, id, a); err != nil {
		return nil, err
	}
	return a, nil
}

// bundleDigest hashes the fields that define the agent's behaviour.
func bundleDigest(a *Agent) (string, error) {
	data, err := json.Marshal(struct {
		Instructions string   `json:"instructions"`
		Model        string   `json:"model"`
		Tools        []string `json:"tools"`
		Temperature  float64  `json:"temperature"`
	}{a.Instructions, a.Model, a.Tools, a.Temperature})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
