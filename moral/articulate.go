package moral

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

const DefaultArticulateTemperature = 0.2

// GeneratedValue is a value articulated from a user message.
type GeneratedValue struct {
	Refusal                  string   `json:"refusal" jsonschema_description:"First, if you like, say 'I will not assist...'"`
	Speculations             string   `json:"speculations" jsonschema_description:"Speculate about what's happening underneath the user's message. What's the true situation, which the user may not have spelled out?"`
	AttentionPolicies        string   `json:"attentionPolicies" jsonschema_description:"Write 'I recognize a good X by...' for the X passed in, then list 12 attention policies that might help choose a good X, marking instrumental or prescriptive ones with (⬇I) or (⬇A)."`
	MoreAttentionPolicies    string   `json:"moreAttentionPolicies" jsonschema_description:"Leave blank if at least 3 policies are neither prescriptive nor instrumental. Otherwise write more policies that are neither."`
	RevisedAttentionPolicies []string `json:"revisedAttentionPolicies" jsonschema_description:"The final set of 3-7 attention policies: none marked (⬇A) or (⬇I), the most meaningful and common for a relevant person, and working together as one source of meaning."`

	FictionalStory string `json:"fictionalStory,omitempty"`
	Title          string `json:"title,omitempty"`
}

// Value projects the articulation onto a Value with the given id.
func (g GeneratedValue) Value(id int) Value {
	policies := make([]string, 0, len(g.RevisedAttentionPolicies))
	for _, p := range g.RevisedAttentionPolicies {
		if p = strings.TrimSpace(p); p != "" {
			policies = append(policies, p)
		}
	}
	return Value{ID: id, Policies: policies, Title: strings.TrimSpace(g.Title)}
}

// ArticulateOptions selects optional outputs of GenerateValue.
type ArticulateOptions struct {
	IncludeStory bool
	IncludeTitle bool
	// FromContext treats the X argument as a situational context rather than a choice type.
	FromContext bool
}

const (
	fictionalStoryDescription = "A very short one-sentence story in present continuous tense, first person, about the exact moment that felt meaningful to someone who has this value. Do not describe the resulting feeling, and include no names or other PII ('my mom', 'a friend')."
	titleDescription          = "A short, catchy title that summarizes the core essence of the value described in the policies."
)

// SituationalFactor is an implicit aspect of a question that would change how to answer it.
type SituationalFactor struct {
	SituationalContext string `json:"situationalContext" jsonschema_description:"1-2 sentences on an aspect of the situation not stated in the question that, made explicit, would change the values to approach it with."`
	Factor             string `json:"factor" jsonschema_description:"The factor, in as few words as possible."`
	QuestionWithFactor string `json:"questionWithFactor" jsonschema_description:"The original question rewritten with the factor made explicit."`
}

type factorsResponse struct {
	Factors []SituationalFactor `json:"factors" jsonschema_description:"5-10 factors that are not explicit, that would be relevant to consider in answering the question."`
}

// Articulator turns user messages into values and situational factors.
type Articulator struct {
	gen     Generator
	prompts Prompts
	timeout time.Duration
	log     *zap.Logger
}

func NewArticulator(gen Generator, prompts Prompts, timeout time.Duration, log *zap.Logger) *Articulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Articulator{gen: gen, prompts: prompts, timeout: timeout, log: log.Named("articulate")}
}

// GenerateValue articulates the source of meaning behind question for a choice type (or, with
// FromContext, a situational context) x.
func (a *Articulator) GenerateValue(ctx context.Context, question, x string, opts ArticulateOptions) (GeneratedValue, error) {
	if strings.TrimSpace(question) == "" {
		return GeneratedValue{}, errors.New("GenerateValue: question is empty")
	}
	schema := provider.GenerateSchema[GeneratedValue]()
	if !opts.IncludeStory {
		removeProperty(schema, "fictionalStory")
	} else {
		provider.AddStringProperty(schema, "fictionalStory", fictionalStoryDescription)
	}
	if !opts.IncludeTitle {
		removeProperty(schema, "title")
	} else {
		provider.AddStringProperty(schema, "title", titleDescription)
	}

	prompt := a.prompts.GenerateValueForChoiceType
	if opts.FromContext {
		prompt = a.prompts.GenerateValueForContext
	}
	data := []provider.Section{
		{Name: "User's message", Value: question},
		{Name: "X", Value: x},
	}
	out, err := generateWithSchema[GeneratedValue](ctx, a.gen, a.timeout, "GenerateValue", prompt, data, schema, DefaultArticulateTemperature)
	if err != nil {
		return GeneratedValue{}, err
	}
	a.log.Debug("articulated value", zap.Int("policies", len(out.RevisedAttentionPolicies)))
	return out, nil
}

// GenerateFactors lists implicit situational factors that would change how to answer question.
func (a *Articulator) GenerateFactors(ctx context.Context, question string) ([]SituationalFactor, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errors.New("GenerateFactors: question is empty")
	}
	data := []provider.Section{{Name: "Question", Value: question}}
	out, err := generate[factorsResponse](ctx, a.gen, a.timeout, "GenerateFactors", a.prompts.GenerateFactors, data, 0)
	if err != nil {
		return nil, err
	}
	return out.Factors, nil
}

func removeProperty(schema map[string]interface{}, name string) {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return
	}
	delete(props, name)
	required, _ := schema["required"].([]string)
	kept := required[:0]
	for _, r := range required {
		if r != name {
			kept = append(kept, r)
		}
	}
	schema["required"] = kept
}
