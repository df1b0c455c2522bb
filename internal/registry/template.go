package registry

import (
	"regexp"
	"sort"
	"strings"

	"github.com/chatcc/evalsim/internal/chat"
)

// Reserved variable names the simulation engine always supplies
// itself. They never show up as operator-facing free variables.
const (
	VarChatHistory = "chat_history"
	VarQuestion    = "question"
)

// TemplateMessage is one message of a hosted prompt template. Text may
// contain {name} substitution placeholders.
type TemplateMessage struct {
	Role     string `json:"role"`
	Template string `json:"template"`
}

// Template is a versioned prompt definition pulled from the hosted
// registry.
type Template struct {
	Name           string            `json:"name"`
	InputVariables []string          `json:"input_variables"`
	Messages       []TemplateMessage `json:"messages"`
}

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// FreeVariables returns the substitution variables an operator must
// supply, sorted. It prefers the template's declared input variables;
// when the registry did not provide them it falls back to scanning the
// message text for {identifier} placeholders. An empty template yields
// an empty set, never an error.
func (t *Template) FreeVariables() []string {
	seen := make(map[string]struct{})
	if len(t.InputVariables) > 0 {
		for _, v := range t.InputVariables {
			seen[v] = struct{}{}
		}
	} else {
		for _, m := range t.Messages {
			for _, match := range placeholderRE.FindAllStringSubmatch(m.Template, -1) {
				seen[match[1]] = struct{}{}
			}
		}
	}
	delete(seen, VarChatHistory)
	delete(seen, VarQuestion)

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// Render substitutes inputs into every message and returns the
// resulting chat turns in template order.
func (t *Template) Render(inputs map[string]string) []chat.Message {
	out := make([]chat.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		text := m.Template
		for k, v := range inputs {
			text = strings.ReplaceAll(text, "{"+k+"}", v)
		}
		out = append(out, chat.Message{Role: m.Role, Content: text})
	}
	return out
}
