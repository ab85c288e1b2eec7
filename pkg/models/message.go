package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is a known conversation role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in a per-user conversation window.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentInputs is the closed input record every specialist handler accepts.
type AgentInputs struct {
	Question    string    `json:"question"`
	ChatHistory []Message `json:"chat_history"`
	Context     string    `json:"context"`
	UserID      string    `json:"user_id"`
	CompanyID   string    `json:"company_id"`
}
