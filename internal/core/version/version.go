// Package version reports build and policy versions stamped into every output audit block
package version

// BuildInfo describes the running binary
type BuildInfo struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Pipeline string `json:"pipeline"`
	Policy   string `json:"policy"`
}

// PipelineVersion names the decision pipeline revision written to audits
const PipelineVersion = "correct_model_v1"

// Set via -ldflags "-X 'github.com/LetsGoKDH/taps/internal/core/version.version=v0.1.0'
// -X '...version.commit=abcd' -X '...version.date=2025-09-02' -X '...version.policy=2025.09'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	policy  = "v1"
)

// Policy returns the decision policy version, overridable per run by a policy file
func Policy() string { return policy }

// Info returns build information for service
func Info(service string) BuildInfo {
	return BuildInfo{
		Service:  service,
		Version:  version,
		Commit:   commit,
		Date:     date,
		Pipeline: PipelineVersion,
		Policy:   policy,
	}
}
