package agents

import "chat-backend/pkg/api"

// Type is the wire agent type. The list lives in pkg/api so clients can
// offer it without importing server code.
type Type = api.AgentType

const (
	EmotionalSupport = api.AgentEmotionalSupport
	Psychology       = api.AgentPsychology
	Sociology        = api.AgentSociology
	GeneralQA        = api.AgentGeneralQA
	MealPlanning     = api.AgentMealPlanning
	TravelPlanning   = api.AgentTravelPlanning
)

// Default is used when a message is sent without an agent type.
const Default = api.DefaultAgentType

func All() []Type {
	return api.AgentTypes()
}

// Resolve returns the agent type for an optional request value, falling back
// to Default when it is missing or empty.
func Resolve(t *string) Type {
	if t == nil || *t == "" {
		return Default
	}
	return Type(*t)
}
