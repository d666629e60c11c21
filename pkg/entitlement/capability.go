package entitlement

import "github.com/apprendschap/packkit/pkg/pack"

// Capability names an action a subscription may allow. Course, quiz and
// exam are metered against monthly caps; the rest are boolean feature
// checks.
type Capability string

const (
	CapabilityCourse         Capability = "course"
	CapabilityQuiz           Capability = "quiz"
	CapabilityExam           Capability = "exam"
	CapabilityPremiumContent Capability = "premium_content"
	CapabilityAIStandard     Capability = "ai_standard"
	CapabilityAIPriority     Capability = "ai_priority"
	CapabilityCertificates   Capability = "certificates"
	CapabilityOfflineContent Capability = "offline_content"
	CapabilityCommunity      Capability = "community"
)

// Metered reports whether the capability is quota-gated.
func (c Capability) Metered() bool {
	switch c {
	case CapabilityCourse, CapabilityQuiz, CapabilityExam:
		return true
	}
	return false
}

// Valid reports whether the capability is known.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityCourse, CapabilityQuiz, CapabilityExam,
		CapabilityPremiumContent, CapabilityAIStandard, CapabilityAIPriority,
		CapabilityCertificates, CapabilityOfflineContent, CapabilityCommunity:
		return true
	}
	return false
}

// monthlyCap returns the entitlement's cap for a metered capability.
// Zero means unlimited.
func monthlyCap(ent pack.Entitlement, c Capability) int {
	switch c {
	case CapabilityCourse:
		return ent.MaxCoursesPerMonth
	case CapabilityQuiz:
		return ent.MaxQuizzesPerMonth
	case CapabilityExam:
		return ent.MaxExamsPerMonth
	}
	return 0
}

// featureEnabled evaluates a boolean capability against the entitlement.
func featureEnabled(ent pack.Entitlement, c Capability) bool {
	switch c {
	case CapabilityPremiumContent:
		return ent.PremiumContent
	case CapabilityAIStandard:
		return ent.AIStandard
	case CapabilityAIPriority:
		return ent.AIPriority
	case CapabilityCertificates:
		return ent.Certificates
	case CapabilityOfflineContent:
		return ent.OfflineContent
	case CapabilityCommunity:
		return ent.Community
	}
	return false
}
