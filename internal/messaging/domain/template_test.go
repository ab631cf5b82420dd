package domain

import (
	"strings"
	"testing"
)

func TestRenderTemplateSubstitutesVariables(t *testing.T) {
	got := RenderTemplate(DefaultTemplate(TemplateAppointmentReminder), map[string]string{
		"clientName":      "Sam",
		"serviceName":     "haircut",
		"appointmentDate": "June 3",
		"appointmentTime": "2:00 PM",
		"confirmText":     "Reply YES to confirm",
		"businessName":    "Shear Luck",
	})
	want := "Hi Sam! Reminder: You have an appointment for haircut on June 3 at 2:00 PM. Reply YES to confirm. - Shear Luck"
	if got != want {
		t.Fatalf("RenderTemplate = %q, want %q", got, want)
	}
}

func TestRenderTemplateUnknownPlaceholderIsEmpty(t *testing.T) {
	got := RenderTemplate("Hello {{clientName}}{{missing}}!", map[string]string{"clientName": "Sam"})
	if got != "Hello Sam!" {
		t.Fatalf("RenderTemplate = %q", got)
	}
}

func TestRenderTemplateTolerantOfSpacing(t *testing.T) {
	got := RenderTemplate("Hi {{ clientName }}", map[string]string{"clientName": "Sam"})
	if got != "Hi Sam" {
		t.Fatalf("RenderTemplate = %q", got)
	}
}

func TestDefaultTemplateFallback(t *testing.T) {
	got := DefaultTemplate("does_not_exist")
	if !strings.Contains(got, "{{businessName}}") {
		t.Fatalf("fallback template = %q", got)
	}
}

func TestFAQAnswerCoversAllTopics(t *testing.T) {
	topics := []FAQTopic{FAQTopicCost, FAQTopicLicensed, FAQTopicServiceArea, FAQTopicAvailability}
	for _, topic := range topics {
		if FAQAnswer(topic) == "" {
			t.Errorf("FAQAnswer(%q) is empty", topic)
		}
	}
	if FAQAnswer(FAQTopic("bogus")) != "" {
		t.Errorf("unknown topic should have no canned answer")
	}
}
