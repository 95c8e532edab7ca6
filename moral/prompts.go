package moral

// Prompts holds the system prompts used by the generation-backed operations. Load them once at
// startup (see package prompts) and pass them in.
type Prompts struct {
	DeduplicateValues            string
	DeduplicateContexts          string
	BestValuesCard               string
	FindExistingDuplicate        string
	FindExistingDuplicateContext string
	GenerateUpgrades             string
	GenerateValueForChoiceType   string
	GenerateValueForContext      string
	GenerateFactors              string
}
