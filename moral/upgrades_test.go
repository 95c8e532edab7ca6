package moral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

const upgradeReply = `{"transitions":[{"a_id":1,"b_id":2,"a_was_really_about":"being seen","clarification":"c","story":"s","mapping":[{"a":"praise","rationale":"r"}],"likelihood_score":"B"}]}`

func TestGenerateUpgrades(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: map[string]func(provider.ObjectRequest) (string, error){
		"GenerateUpgrades": fixed(upgradeReply),
	}}
	u := NewUpgrader(gen, Prompts{GenerateUpgrades: "upgrade"}, 0, 0, nil)

	got, err := u.GenerateUpgrades(context.Background(), valuesN(1), "")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, gen.reqs)

	got, err = u.GenerateUpgrades(context.Background(), valuesN(2), "a career")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, UpgradeTransition{
		AID:             1,
		BID:             2,
		AWasReallyAbout: "being seen",
		Clarification:   "c",
		Story:           "s",
		Mapping:         []CriterionMapping{{A: "praise", Rationale: "r"}},
		LikelihoodScore: "B",
	}, got[0])

	require.Len(t, gen.reqs, 1)
	req := gen.reqs[0]
	assert.Equal(t, "upgrade", req.Prompt)
	assert.Equal(t, DefaultUpgradeTemperature, req.Temperature)
	require.Len(t, req.Data, 2)
	assert.Equal(t, "values", req.Data[0].Name)
	assert.Equal(t, "context", req.Data[1].Name)
}

func TestGenerateUpgrades_Failure(t *testing.T) {
	t.Parallel()

	u := NewUpgrader(failingGenerator{}, Prompts{}, 0.5, 0, nil)
	_, err := u.GenerateUpgrades(context.Background(), valuesN(2), "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "GenerateUpgrades", genErr.Op)
}

func TestGenerateUpgradesToValue(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: map[string]func(provider.ObjectRequest) (string, error){
		"GenerateUpgradesToValue": fixed(upgradeReply),
	}}
	u := NewUpgrader(gen, Prompts{}, 0.7, 0, nil)
	target := Value{ID: 2, Policies: []string{"moments when"}}

	got, err := u.GenerateUpgradesToValue(context.Background(), target, []Value{{ID: 1}}, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].BID)

	require.Len(t, gen.reqs, 1)
	req := gen.reqs[0]
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, []string{"targetValue", "candidateValues"}, []string{req.Data[0].Name, req.Data[1].Name})

	props := req.Schema["properties"].(map[string]interface{})
	items := props["transitions"].(map[string]interface{})["items"].(map[string]interface{})
	bID := items["properties"].(map[string]interface{})["b_id"].(map[string]interface{})
	assert.Contains(t, bID["description"], "Must always be the target value")

	got, err = u.GenerateUpgradesToValue(context.Background(), target, nil, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerateUpgradesToValue_TargetMismatch(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: map[string]func(provider.ObjectRequest) (string, error){
		"GenerateUpgradesToValue": fixed(upgradeReply),
	}}
	u := NewUpgrader(gen, Prompts{}, 0, 0, nil)
	_, err := u.GenerateUpgradesToValue(context.Background(), Value{ID: 9}, []Value{{ID: 1}}, "")
	var mismatch *TargetMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, TargetMismatchError{Want: 9, Got: 2}, *mismatch)
}
