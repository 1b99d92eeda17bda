package counsel

import "context"

// TemplateGenerator returns fixed counsel per mentor. It ignores the
// dilemma text beyond validation done by callers.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

var debateTemplates = Responses{
	"machiavelli": `Your dilemma reveals a fundamental question of power. Those who hold influence often do so through calculated relationships, not mere authority. Assess who has leverage in this situation - leverage comes from what others need that only you can provide. Do not seek to be loved in this matter; seek to be necessary. Position yourself strategically, identify the weak points in the opposition, and remember: the end justifies the means when power is at stake.`,

	"napoleon": `This situation demands decisive action, not endless deliberation. Analysis without execution is paralysis. You must commit fully to a course of action and strike with overwhelming force. Half-measures breed half-results. Identify your objective clearly, marshal your resources, and attack the problem at its weakest point. Speed and audacity will carry you further than perfect planning. The battlefield rewards those who act while others hesitate.`,

	"aurelius": `Your dilemma is an opportunity to practice virtue under pressure. What appears as an external problem is truly a test of your character. You cannot control the actions of others, the circumstances you face, or the outcomes that follow - but you can master your response. Begin with self-discipline: clarify your principles, act in accordance with them, and accept what follows with equanimity. True power lies not in dominating external events, but in maintaining inner sovereignty regardless of circumstance.`,
}

const verdictTemplate = `The council has deliberated on your dilemma. Machiavelli reminds you that power flows from strategic positioning and leverage - assess who holds what cards and position yourself accordingly. Napoleon calls for decisive action over endless analysis - commit fully and execute with conviction. Aurelius anchors you in virtue and self-command - master your response regardless of external circumstances. Your path forward must balance pragmatic realism with bold action, both grounded in unwavering discipline. The situation demands you understand power dynamics (Machiavelli), act decisively when the moment comes (Napoleon), and maintain your principles throughout (Aurelius). This is the way of the Imperium.`

var messageTemplates = map[string]Message{
	"machiavelli": {
		Principle: "Power is seized, not granted.",
		Analysis:  "Your situation requires careful assessment of who holds leverage and who can be influenced.",
		Directive: "Identify the key players, map their interests, and position yourself strategically.",
	},
	"napoleon": {
		Principle: "Victory belongs to the decisive.",
		Analysis:  "Hesitation is your enemy. The battlefield rewards those who act with conviction.",
		Directive: "Take immediate action. Commit fully and execute with overwhelming force.",
	},
	"aurelius": {
		Principle: "Control yourself, not the world.",
		Analysis:  "External circumstances are beyond your control, but your response is entirely yours.",
		Directive: "Begin with your morning ritual. Discipline precedes all victory.",
	},
}

var fallbackMessage = Message{
	Principle: "Wisdom comes through action.",
	Analysis:  "Reflect on your situation carefully.",
	Directive: "Take the first step today.",
}

func (g *TemplateGenerator) Responses(_ context.Context, _ string) (Responses, error) {
	out := make(Responses, len(debateTemplates))
	for id, text := range debateTemplates {
		out[id] = text
	}
	return out, nil
}

func (g *TemplateGenerator) Verdict(_ context.Context, _ string, _ Responses) (string, error) {
	return verdictTemplate, nil
}

func (g *TemplateGenerator) Message(_ context.Context, mentorID string) (Message, error) {
	if msg, ok := messageTemplates[mentorID]; ok {
		return msg, nil
	}
	return fallbackMessage, nil
}
