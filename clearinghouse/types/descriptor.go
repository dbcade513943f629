package types

// Verifier type tags carried in Descriptor.Type.
const (
	VerifierCodeExecution = "code_execution"
	VerifierSemantic      = "semantic"
	VerifierSchema        = "schema"
	VerifierMock          = "mock"
)

// Descriptor selects and configures a verifier strategy for a contract. Type
// is the discriminant; the remaining fields are strategy-specific and zero
// for strategies that do not use them.
type Descriptor struct {
	Type string `json:"type"`

	// Code execution.
	TimeoutSeconds int    `json:"timeout,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`

	// Semantic.
	Criteria string `json:"criteria,omitempty"`

	// Mock.
	ShouldPass *bool    `json:"should_pass,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Details    string   `json:"details,omitempty"`
}
