package agents

import "context"

// Responder produces the assistant reply for a user message. Implementations
// backed by a text generation provider plug in here.
type Responder interface {
	Respond(ctx context.Context, text string, agentType Type) (string, error)
}

type TemplateResponder struct {
	selector *Selector
}

func NewTemplateResponder() *TemplateResponder {
	return &TemplateResponder{selector: defaultSelector}
}

func (r *TemplateResponder) Respond(_ context.Context, text string, agentType Type) (string, error) {
	return r.selector.Select(text, agentType), nil
}
