package domain

// Provider names recognized by the executor's adapter registry. Unknown
// providers fall back to ProviderOpenRouter.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderXAI        = "xai"
	ProviderOpenRouter = "openrouter"
)

// Model is immutable provider+name reference data with capability flags.
type Model struct {
	ID                   string `db:"id"                     json:"id"`
	Name                 string `db:"name"                   json:"name"`
	Provider             string `db:"provider"               json:"provider"`
	SupportsObjectOutput bool   `db:"supports_object_output" json:"supports_object_output"`
	SupportsTemperature  bool   `db:"supports_temperature"   json:"supports_temperature"`
	NativeWebSearch      bool   `db:"native_web_search"      json:"native_web_search"`
	Category             string `db:"category"               json:"category"`
}
