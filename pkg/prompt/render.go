// Package prompt resolves and renders the per-agent prompt templates.
package prompt

import "strings"

// Vars holds the values for the recognized template placeholders.
// The placeholder set is closed: {question}, {chat_history}, {context},
// {company_name}, {services}.
type Vars struct {
	Question    string
	ChatHistory string
	Context     string
	CompanyName string
	Services    string
}

// Render substitutes the recognized placeholders into a template body.
// Unknown braces are left untouched.
func Render(template string, vars Vars) string {
	r := strings.NewReplacer(
		"{question}", vars.Question,
		"{chat_history}", vars.ChatHistory,
		"{context}", vars.Context,
		"{company_name}", vars.CompanyName,
		"{services}", vars.Services,
	)
	return r.Replace(template)
}
