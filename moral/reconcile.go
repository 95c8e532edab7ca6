package moral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theimaginaryfoundation/values-tools/moral/provider"
)

// ReconcileOptions tunes a Reconciler.
type ReconcileOptions struct {
	// Temperature is passed to every generation call.
	Temperature float64
	// Concurrency bounds how many clusters are reconciled at once (0 = 1).
	Concurrency int
	// CallTimeout bounds each external call; 0 leaves calls bounded only by the caller's ctx.
	CallTimeout time.Duration
	// Cluster configures the density clustering that precedes reconciliation.
	Cluster ClusterParams
}

// Reconciler refines density clusters with a language model. Generation failures never lose
// input: merge operations fall back to leaving items as they were, match operations to "no match".
type Reconciler struct {
	gen     Generator
	emb     Embedder
	prompts Prompts
	opts    ReconcileOptions
	log     *zap.Logger
}

func NewReconciler(gen Generator, emb Embedder, prompts Prompts, opts ReconcileOptions, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	opts.Cluster = opts.Cluster.withDefaults()
	return &Reconciler{gen: gen, emb: emb, prompts: prompts, opts: opts, log: log.Named("reconcile")}
}

// policyValue is the view of a value shown to the model.
type policyValue struct {
	ID       int      `json:"id"`
	Policies []string `json:"policies"`
}

type valueClustersResponse struct {
	Clusters [][]int `json:"clusters" jsonschema_description:"A list of value clusters, where each cluster is a list of ids referring to values that all are about the same source of meaning."`
}

// DeduplicateValues splits one cluster of values into groups that share a source of meaning.
// choiceType, when non-empty, names the kind of choice the values were articulated for.
// If generation fails the cluster comes back as a single group. Every input value appears in
// exactly one output group.
func (r *Reconciler) DeduplicateValues(ctx context.Context, values []Value, choiceType string) [][]Value {
	if len(values) == 0 {
		return nil
	}
	if len(values) == 1 {
		return [][]Value{{values[0]}}
	}

	shown := make([]policyValue, len(values))
	for i, v := range values {
		shown[i] = policyValue{ID: i, Policies: v.Policies}
	}
	data := []provider.Section{{Name: "values", Value: shown}}
	if choiceType != "" {
		data = append(data, provider.Section{Name: "choiceType", Value: choiceType})
	}

	resp, err := generate[valueClustersResponse](ctx, r.gen, r.opts.CallTimeout, "DeduplicateValues", r.prompts.DeduplicateValues, data, r.opts.Temperature)
	if err != nil {
		r.log.Warn("keeping cluster unsplit", zap.Int("cluster_size", len(values)), zap.Error(err))
		return [][]Value{append([]Value(nil), values...)}
	}

	groups := r.validIndexGroups("DeduplicateValues", resp.Clusters, len(values))
	out := make([][]Value, 0, len(groups))
	for _, g := range groups {
		members := make([]Value, 0, len(g))
		for _, i := range g {
			members = append(members, values[i])
		}
		out = append(out, members)
	}
	return out
}

// validIndexGroups drops out-of-range and repeated indices and empty groups, then appends every
// index in [0, n) not yet placed as its own group.
func (r *Reconciler) validIndexGroups(op string, groups [][]int, n int) [][]int {
	placed := make([]bool, n)
	out := make([][]int, 0, len(groups))
	dropped := 0
	for _, g := range groups {
		var kept []int
		for _, i := range g {
			if i < 0 || i >= n || placed[i] {
				dropped++
				continue
			}
			placed[i] = true
			kept = append(kept, i)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	if dropped > 0 {
		r.log.Warn("dropped invalid ids from model output", zap.String("op", op), zap.Int("dropped", dropped))
	}
	for i := 0; i < n; i++ {
		if !placed[i] {
			out = append(out, []int{i})
		}
	}
	return out
}

// DeduplicateValueSet embeds values, clusters them by density and reconciles every
// multi-value cluster concurrently. Only embedding failures and ctx cancellation are errors.
func (r *Reconciler) DeduplicateValueSet(ctx context.Context, values []Value, choiceType string) ([][]Value, error) {
	if len(values) == 0 {
		return nil, nil
	}

	embeddings, err := r.embedValues(ctx, "DeduplicateValueSet", values)
	if err != nil {
		return nil, err
	}

	clusters, err := ClusterItems(values, embeddings, r.opts.Cluster)
	if err != nil {
		return nil, fmt.Errorf("DeduplicateValueSet: %w", err)
	}
	r.log.Info("clustered values", zap.Int("values", len(values)), zap.Int("clusters", len(clusters)))

	results := make([][][]Value, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for ci, cluster := range clusters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[ci] = r.DeduplicateValues(gctx, cluster, choiceType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("DeduplicateValueSet: %w", err)
	}

	var merged [][]Value
	for _, groups := range results {
		merged = append(merged, groups...)
	}
	return repairValueGroups(merged, values), nil
}

// EmbedTexts embeds texts under the per-call timeout. Failures are *EmbeddingError.
func (r *Reconciler) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return embedTexts(ctx, r.emb, r.opts.CallTimeout, "EmbedTexts", texts)
}

// EmbedValues returns one embedding per value, reusing Value.Embedding when present and
// embedding the rest in one call under the per-call timeout. Failures are *EmbeddingError.
func (r *Reconciler) EmbedValues(ctx context.Context, values []Value) ([][]float64, error) {
	return r.embedValues(ctx, "EmbedValues", values)
}

func (r *Reconciler) embedValues(ctx context.Context, op string, values []Value) ([][]float64, error) {
	out := make([][]float64, len(values))
	var texts []string
	var missing []int
	for i, v := range values {
		if len(v.Embedding) > 0 {
			out[i] = v.Embedding
			continue
		}
		texts = append(texts, v.EmbeddingText())
		missing = append(missing, i)
	}
	if len(texts) == 0 {
		return out, nil
	}
	vecs, err := embedTexts(ctx, r.emb, r.opts.CallTimeout, op, texts)
	if err != nil {
		return nil, err
	}
	for k, i := range missing {
		out[i] = vecs[k]
	}
	return out, nil
}

// repairValueGroups makes groups an exact partition of values: repeated ids after the first
// occurrence are removed, and values absent from every group are appended as singletons.
func repairValueGroups(groups [][]Value, values []Value) [][]Value {
	known := make(map[int]struct{}, len(values))
	for _, v := range values {
		known[v.ID] = struct{}{}
	}
	placed := make(map[int]struct{}, len(values))
	out := make([][]Value, 0, len(groups))
	for _, g := range groups {
		var kept []Value
		for _, v := range g {
			if _, ok := known[v.ID]; !ok {
				continue
			}
			if _, ok := placed[v.ID]; ok {
				continue
			}
			placed[v.ID] = struct{}{}
			kept = append(kept, v)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	for _, v := range values {
		if _, ok := placed[v.ID]; !ok {
			placed[v.ID] = struct{}{}
			out = append(out, []Value{v})
		}
	}
	return out
}

// ContextGroup is a set of synonymous context strings and the one chosen to stand for them.
type ContextGroup struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}

type synonymGroupsResponse struct {
	SynonymGroups [][]string `json:"synonymGroups" jsonschema_description:"A list of synonym groups, where each term in the group is a synonym of every other term. Combined, the terms in all the groups should contain all terms that were provided."`
}

// DeduplicateContexts groups context strings that name the same kind of choice. With
// useClustering the strings are first split by embedding density, which keeps each prompt
// small, and the strings outside every dense region are reconciled together as one more
// cluster; otherwise every string is sent in one request. The last member of each group is its
// representative. A cluster whose generation fails keeps its strings as separate groups.
func (r *Reconciler) DeduplicateContexts(ctx context.Context, contexts []string, useClustering bool) ([]ContextGroup, error) {
	unique := uniqueStrings(contexts)
	if len(unique) == 0 {
		return nil, nil
	}

	clusters := [][]string{unique}
	if useClustering {
		vecs, err := embedTexts(ctx, r.emb, r.opts.CallTimeout, "DeduplicateContexts", unique)
		if err != nil {
			return nil, err
		}
		dense, noise, err := ClusterWithNoise(vecs, r.opts.Cluster)
		if err != nil {
			return nil, fmt.Errorf("DeduplicateContexts: %w", err)
		}
		clusters = make([][]string, 0, len(dense)+1)
		for _, idx := range append(dense, noise) {
			if len(idx) == 0 {
				continue
			}
			members := make([]string, len(idx))
			for k, i := range idx {
				members[k] = unique[i]
			}
			clusters = append(clusters, members)
		}
		r.log.Debug("clustered contexts", zap.Int("contexts", len(unique)), zap.Int("dense", len(dense)), zap.Int("unclustered", len(noise)))
	}

	results := make([][][]string, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for ci, cluster := range clusters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[ci] = r.dedupeContextCluster(gctx, cluster)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("DeduplicateContexts: %w", err)
	}

	var groups [][]string
	for _, res := range results {
		groups = append(groups, res...)
	}
	return repairContextGroups(groups, unique), nil
}

func (r *Reconciler) dedupeContextCluster(ctx context.Context, cluster []string) [][]string {
	if len(cluster) == 1 {
		return [][]string{{cluster[0]}}
	}
	data := []provider.Section{{Name: "terms", Value: cluster}}
	resp, err := generate[synonymGroupsResponse](ctx, r.gen, r.opts.CallTimeout, "DeduplicateContexts", r.prompts.DeduplicateContexts, data, r.opts.Temperature)
	if err != nil {
		r.log.Warn("keeping contexts separate", zap.Int("cluster_size", len(cluster)), zap.Error(err))
		out := make([][]string, 0, len(cluster))
		for _, c := range cluster {
			out = append(out, []string{c})
		}
		return out
	}

	inCluster := make(map[string]struct{}, len(cluster))
	for _, c := range cluster {
		inCluster[c] = struct{}{}
	}
	out := make([][]string, 0, len(resp.SynonymGroups))
	dropped := 0
	for _, group := range resp.SynonymGroups {
		var kept []string
		for _, term := range group {
			if _, ok := inCluster[term]; !ok {
				dropped++
				continue
			}
			kept = append(kept, term)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	if dropped > 0 {
		r.log.Warn("dropped unknown terms from model output", zap.String("op", "DeduplicateContexts"), zap.Int("dropped", dropped))
	}
	return out
}

// repairContextGroups removes repeated strings and adds missing ones as their own group.
func repairContextGroups(groups [][]string, all []string) []ContextGroup {
	placed := make(map[string]struct{}, len(all))
	out := make([]ContextGroup, 0, len(groups))
	for _, g := range groups {
		var kept []string
		for _, s := range g {
			if _, ok := placed[s]; ok {
				continue
			}
			placed[s] = struct{}{}
			kept = append(kept, s)
		}
		if len(kept) > 0 {
			out = append(out, ContextGroup{Representative: kept[len(kept)-1], Members: kept})
		}
	}
	for _, s := range all {
		if _, ok := placed[s]; !ok {
			placed[s] = struct{}{}
			out = append(out, ContextGroup{Representative: s, Members: []string{s}})
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

type bestValueResponse struct {
	BestValueID int `json:"bestValueId" jsonschema_description:"The id of the values card that best captures the shared source of meaning."`
}

// GetRepresentativeValue picks the best-formulated value among candidates that are believed to
// express one source of meaning. A single candidate is returned as is; if the model fails or
// names an unknown id, the first candidate is used.
func (r *Reconciler) GetRepresentativeValue(ctx context.Context, candidates []Value) (Value, error) {
	if len(candidates) == 0 {
		return Value{}, errors.New("GetRepresentativeValue: no candidates")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	cards := make([]policyValue, len(candidates))
	for i, v := range candidates {
		cards[i] = policyValue{ID: v.ID, Policies: v.Policies}
	}
	data := []provider.Section{{Name: "values", Value: cards}}
	resp, err := generate[bestValueResponse](ctx, r.gen, r.opts.CallTimeout, "GetRepresentativeValue", r.prompts.BestValuesCard, data, r.opts.Temperature)
	if err != nil {
		r.log.Warn("falling back to first candidate", zap.Int("candidates", len(candidates)), zap.Error(err))
		return candidates[0], nil
	}
	for _, v := range candidates {
		if v.ID == resp.BestValueID {
			return v, nil
		}
	}
	r.log.Warn("model picked an unknown value id", zap.Int("id", resp.BestValueID))
	return candidates[0], nil
}

type existingDuplicateResponse struct {
	DuplicateID int `json:"duplicateId" jsonschema_description:"The id of the canonical value that represents the same source of meaning as the given value, or -1 if there is none."`
}

// GetExistingDuplicateValue reports which candidate, if any, already captures value's source of
// meaning. Errors and unknown ids count as no match.
func (r *Reconciler) GetExistingDuplicateValue(ctx context.Context, value Value, candidates []Value) (Value, bool) {
	if len(candidates) == 0 {
		return Value{}, false
	}
	shown := make([]policyValue, len(candidates))
	for i, c := range candidates {
		shown[i] = policyValue{ID: c.ID, Policies: c.Policies}
	}
	data := []provider.Section{
		{Name: "value", Value: policyValue{ID: value.ID, Policies: value.Policies}},
		{Name: "candidates", Value: shown},
	}
	resp, err := generate[existingDuplicateResponse](ctx, r.gen, r.opts.CallTimeout, "GetExistingDuplicateValue", r.prompts.FindExistingDuplicate, data, r.opts.Temperature)
	if err != nil {
		r.log.Warn("treating as no match", zap.Int("value_id", value.ID), zap.Error(err))
		return Value{}, false
	}
	if resp.DuplicateID < 0 {
		return Value{}, false
	}
	for _, c := range candidates {
		if c.ID == resp.DuplicateID {
			return c, true
		}
	}
	r.log.Warn("model named an unknown candidate", zap.Int("value_id", value.ID), zap.Int("duplicate_id", resp.DuplicateID))
	return Value{}, false
}

type existingContextResponse struct {
	DuplicateIndex int `json:"duplicateIndex" jsonschema_description:"The index in the candidate list of the term that names the same kind of choice as the given term, or -1 if there is none."`
}

type indexedTerm struct {
	Index int    `json:"index"`
	Term  string `json:"term"`
}

// GetExistingDuplicateContext reports which candidate context, if any, names the same kind of
// choice as term. Errors and out-of-range answers count as no match.
func (r *Reconciler) GetExistingDuplicateContext(ctx context.Context, term string, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	shown := make([]indexedTerm, len(candidates))
	for i, c := range candidates {
		shown[i] = indexedTerm{Index: i, Term: c}
	}
	data := []provider.Section{
		{Name: "term", Value: term},
		{Name: "candidates", Value: shown},
	}
	resp, err := generate[existingContextResponse](ctx, r.gen, r.opts.CallTimeout, "GetExistingDuplicateContext", r.prompts.FindExistingDuplicateContext, data, r.opts.Temperature)
	if err != nil {
		r.log.Warn("treating as no match", zap.String("context", term), zap.Error(err))
		return "", false
	}
	if resp.DuplicateIndex < 0 || resp.DuplicateIndex >= len(candidates) {
		if resp.DuplicateIndex >= len(candidates) {
			r.log.Warn("model named an out-of-range candidate", zap.Int("index", resp.DuplicateIndex))
		}
		return "", false
	}
	return candidates[resp.DuplicateIndex], true
}
