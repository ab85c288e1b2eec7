package models

import "time"

// ValidationRecord captures the outcome of a validation node.
type ValidationRecord struct {
	Node    string    `json:"node"`
	OK      bool      `json:"ok"`
	Warning string    `json:"warning,omitempty"`
	At      time.Time `json:"at"`
}

// ExecutionRecord captures one agent or tool execution inside a request.
type ExecutionRecord struct {
	Node       string        `json:"node"`
	Agent      string        `json:"agent,omitempty"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// ToolResult is the outcome of a single tool execution.
type ToolResult struct {
	Tool    string         `json:"tool"`
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// OrchestratorState is the request-scoped state threaded through the graph.
// The immutable entries (Question, UserID, CompanyID, ChatHistory, Context)
// are set once by the ingress and never rewritten by nodes.
type OrchestratorState struct {
	// Immutable request inputs.
	Question    string    `json:"question"`
	UserID      string    `json:"user_id"`
	CompanyID   string    `json:"company_id"`
	ChatHistory []Message `json:"chat_history"`
	Context     string    `json:"context"`

	// Classification.
	Intent              Intent   `json:"intent,omitempty"`
	Confidence          float64  `json:"confidence"`
	IntentKeywords      []string `json:"intent_keywords,omitempty"`
	SecondaryIntent     Intent   `json:"secondary_intent,omitempty"`
	SecondaryConfidence float64  `json:"secondary_confidence"`

	// Execution.
	CurrentAgent  string `json:"current_agent,omitempty"`
	AgentResponse string `json:"agent_response,omitempty"`

	// Cross-agent coordination.
	SharedContext    map[string]any `json:"shared_context,omitempty"`
	HandoffRequested bool           `json:"handoff_requested"`
	HandoffFrom      string         `json:"handoff_from,omitempty"`
	HandoffTo        string         `json:"handoff_to,omitempty"`
	HandoffReason    string         `json:"handoff_reason,omitempty"`
	HandoffCompleted bool           `json:"handoff_completed"`

	// Control flow.
	Retries        int          `json:"retries"`
	ShouldRetry    bool         `json:"should_retry"`
	ShouldEscalate bool         `json:"should_escalate"`
	ToolsToExecute []string     `json:"tools_to_execute,omitempty"`
	ToolsExecuted  []string     `json:"tools_executed,omitempty"`
	ToolResults    []ToolResult `json:"tool_results,omitempty"`
	ToolErrors     []string     `json:"tool_errors,omitempty"`

	// Bookkeeping.
	Validations []ValidationRecord `json:"validations,omitempty"`
	Executions  []ExecutionRecord  `json:"executions,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

// NewOrchestratorState seeds request state from ingress inputs.
func NewOrchestratorState(question, userID, companyID string, history []Message, context string) *OrchestratorState {
	return &OrchestratorState{
		Question:      question,
		UserID:        userID,
		CompanyID:     companyID,
		ChatHistory:   history,
		Context:       context,
		SharedContext: make(map[string]any),
		StartedAt:     time.Now(),
	}
}

// AddValidation appends a validation record.
func (s *OrchestratorState) AddValidation(node string, ok bool, warning string) {
	s.Validations = append(s.Validations, ValidationRecord{
		Node:    node,
		OK:      ok,
		Warning: warning,
		At:      time.Now(),
	})
}

// Executed reports whether a tool node already ran during this request.
func (s *OrchestratorState) Executed(tool string) bool {
	for _, t := range s.ToolsExecuted {
		if t == tool {
			return true
		}
	}
	return false
}

// AddError appends a non-fatal error message to the request log.
func (s *OrchestratorState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}
