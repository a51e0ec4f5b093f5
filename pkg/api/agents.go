package api

// AgentType selects which set of canned replies answers a message. It is not
// a model identifier.
type AgentType string

const (
	AgentEmotionalSupport AgentType = "emotional_support"
	AgentPsychology       AgentType = "psychology"
	AgentSociology        AgentType = "sociology"
	AgentGeneralQA        AgentType = "general_qa"
	AgentMealPlanning     AgentType = "meal_planning"
	AgentTravelPlanning   AgentType = "travel_planning"
)

// DefaultAgentType answers messages sent without an agent type.
const DefaultAgentType = AgentGeneralQA

var agentTypes = []AgentType{
	AgentEmotionalSupport,
	AgentPsychology,
	AgentSociology,
	AgentGeneralQA,
	AgentMealPlanning,
	AgentTravelPlanning,
}

func AgentTypes() []AgentType {
	return append([]AgentType(nil), agentTypes...)
}

func (t AgentType) Valid() bool {
	for _, a := range agentTypes {
		if a == t {
			return true
		}
	}
	return false
}
