package moral

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// DefaultUpgradeTemperature is the sampling temperature used for upgrade stories.
const DefaultUpgradeTemperature = 0.3

// CriterionMapping relates one evaluation criterion of the old value to the new one.
type CriterionMapping struct {
	A         string `json:"a" jsonschema_description:"An evaluation criterion of the old value."`
	Rationale string `json:"rationale" jsonschema_description:"What strategy did you use, and why is it relevant?"`
}

// UpgradeTransition is a generated transition from value A to a wiser value B.
type UpgradeTransition struct {
	AID             int                `json:"a_id" jsonschema_description:"The id of the value the person used to have."`
	BID             int                `json:"b_id" jsonschema_description:"The id of the value they have now."`
	AWasReallyAbout string             `json:"a_was_really_about" jsonschema_description:"If the new value is a 'deeper cut' at what you *really* cared about the whole time, what was it that you really cared about all along?"`
	Clarification   string             `json:"clarification" jsonschema_description:"What was confused or incomplete about the old value, that the new value clarifies?"`
	Story           string             `json:"story" jsonschema_description:"A plausible, specific, first-person story of discovering the problem with the old value and finding the new one, and where the new value broadly applies. Focus on the essence of the values and their difference rather than lists of criteria."`
	Mapping         []CriterionMapping `json:"mapping" jsonschema_description:"How do each of the evaluation criteria from the old value relate to criteria of the new one?"`
	LikelihoodScore string             `json:"likelihood_score" jsonschema:"enum=A,enum=B,enum=C,enum=D,enum=F" jsonschema_description:"How likely is this transition and story to be considered a gain in wisdom?"`
}

type upgradesResponse struct {
	Transitions []UpgradeTransition `json:"transitions"`
}

// Upgrader generates "wiser than" transitions between values.
type Upgrader struct {
	gen         Generator
	prompt      string
	temperature float64
	timeout     time.Duration
	log         *zap.Logger
}

// NewUpgrader builds an Upgrader; temperature <= 0 uses DefaultUpgradeTemperature.
func NewUpgrader(gen Generator, prompts Prompts, temperature float64, timeout time.Duration, log *zap.Logger) *Upgrader {
	if log == nil {
		log = zap.NewNop()
	}
	if temperature <= 0 {
		temperature = DefaultUpgradeTemperature
	}
	return &Upgrader{gen: gen, prompt: prompts.GenerateUpgrades, temperature: temperature, timeout: timeout, log: log.Named("upgrades")}
}

// GenerateUpgrades proposes transitions among values, optionally within a context. Fewer than
// two values yield no transitions.
func (u *Upgrader) GenerateUpgrades(ctx context.Context, values []Value, context string) ([]UpgradeTransition, error) {
	if len(values) < 2 {
		u.log.Debug("not enough values for upgrades", zap.Int("values", len(values)))
		return nil, nil
	}
	data := []provider.Section{{Name: "values", Value: policyValues(values)}}
	if context != "" {
		data = append(data, provider.Section{Name: "context", Value: context})
	}
	resp, err := generate[upgradesResponse](ctx, u.gen, u.timeout, "GenerateUpgrades", u.prompt, data, u.temperature)
	if err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// GenerateUpgradesToValue proposes transitions from candidates to target. A transition that does
// not end at target is a *TargetMismatchError.
func (u *Upgrader) GenerateUpgradesToValue(ctx context.Context, target Value, candidates []Value, context string) ([]UpgradeTransition, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	data := []provider.Section{
		{Name: "targetValue", Value: policyValue{ID: target.ID, Policies: target.Policies}},
		{Name: "candidateValues", Value: policyValues(candidates)},
	}
	if context != "" {
		data = append(data, provider.Section{Name: "context", Value: context})
	}

	schema := provider.GenerateSchema[upgradesResponse]()
	if err := describeTargetField(schema); err != nil {
		return nil, fmt.Errorf("GenerateUpgradesToValue: %w", err)
	}
	resp, err := generateWithSchema[upgradesResponse](ctx, u.gen, u.timeout, "GenerateUpgradesToValue", u.prompt, data, schema, u.temperature)
	if err != nil {
		return nil, err
	}
	for _, t := range resp.Transitions {
		if t.BID != target.ID {
			return nil, fmt.Errorf("GenerateUpgradesToValue: %w", &TargetMismatchError{Want: target.ID, Got: t.BID})
		}
	}
	return resp.Transitions, nil
}

// describeTargetField tells the model b_id must always be the target value.
func describeTargetField(schema map[string]interface{}) error {
	props, _ := schema["properties"].(map[string]interface{})
	transitions, _ := props["transitions"].(map[string]interface{})
	items, _ := transitions["items"].(map[string]interface{})
	itemProps, _ := items["properties"].(map[string]interface{})
	bID, ok := itemProps["b_id"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("upgrade schema has no b_id property")
	}
	bID["description"] = "The id of the value they have now. Must always be the target value."
	return nil
}

func policyValues(values []Value) []policyValue {
	out := make([]policyValue, len(values))
	for i, v := range values {
		out[i] = policyValue{ID: v.ID, Policies: v.Policies}
	}
	return out
}
