package voice

import (
	"strings"

	"github.com/samber/lo"
)

var medicalKeywords = []string{
	"pain", "headache", "fever", "chest", "breath", "cough", "nausea",
	"dizzy", "dizziness", "blood", "pressure", "heart", "diabetes",
	"medication", "allergy", "rash", "fatigue", "vomiting", "infection",
	"swelling", "anxiety", "depression", "insulin", "asthma", "migraine",
	"bleeding", "prescription", "symptom",
}

var healthIndicators = []string{
	"feel", "hurt", "pain", "sick", "symptom", "doctor", "medicine",
	"medication", "appointment", "health", "treatment", "test result",
}

// MedicalKeywords returns the keywords found in text, in list order.
func MedicalKeywords(text string) []string {
	lower := strings.ToLower(text)
	return lo.Filter(medicalKeywords, func(k string, _ int) bool {
		return strings.Contains(lower, k)
	})
}

func IsHealthRelated(text string) bool {
	lower := strings.ToLower(text)
	return lo.SomeBy(healthIndicators, func(k string) bool {
		return strings.Contains(lower, k)
	})
}
