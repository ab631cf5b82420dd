package domain

import (
	"regexp"
	"strings"
)

// Template keys used by automation and the notification worker.
const (
	TemplateAppointmentReminder     = "appointment_reminder"
	TemplateAppointmentConfirmation = "appointment_confirmation"
	TemplateWaitlistNotification    = "waitlist_notification"
	TemplatePaymentReceipt          = "payment_receipt"
	TemplatePaymentFailedClient     = "payment_failed_client"
	TemplatePaymentFailedOwner      = "payment_failed_owner"
	TemplateDunningReminder         = "dunning_reminder"
	TemplateTrialEnding             = "trial_ending"
	TemplateWelcome                 = "welcome"
	TemplateSubscriptionNotice      = "subscription_notice"
	TemplateSubscriptionCanceled    = "subscription_canceled"
	TemplateConnectEnabled          = "connect_enabled"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

var defaultTemplates = map[string]string{
	TemplateAppointmentReminder:     "Hi {{clientName}}! Reminder: You have an appointment for {{serviceName}} on {{appointmentDate}} at {{appointmentTime}}. {{confirmText}}. - {{businessName}}",
	TemplateAppointmentConfirmation: "Hi {{clientName}}! Please confirm your {{serviceName}} appointment on {{appointmentDate}} at {{appointmentTime}}. {{confirmText}}. - {{businessName}}",
	TemplateWaitlistNotification:    "Hi {{clientName}}! A {{serviceName}} slot opened up on {{availableDate}} at {{availableTime}}. {{responseText}} (expires in {{expiresIn}}). - {{businessName}}",
	TemplatePaymentReceipt:          "Hi {{clientName}}! Payment received: {{amount}} for {{serviceDescription}}. Receipt #{{receiptNumber}}. Thank you! - {{businessName}}",
	TemplatePaymentFailedClient:     "Hi {{clientName}}! Your payment of {{amount}} to {{businessName}} didn't go through. Please try again or contact us to settle up.",
	TemplatePaymentFailedOwner:      "Hi {{businessName}}! A payment of {{amount}} from {{clientName}} failed: {{failureMessage}}",
	TemplateDunningReminder:         "Hi {{businessName}}! Your subscription payment didn't go through. Please update your payment method to avoid interruption. ({{attempt}})",
	TemplateTrialEnding:             "Hi {{businessName}}! Your free trial ends on {{trialEndsAt}}. Add a payment method to keep your account active.",
	TemplateWelcome:                 "Hi {{businessName}}! Your account is ready. Log in to finish onboarding and start booking clients.",
	TemplateSubscriptionNotice:      "Hi {{businessName}}! Your subscription is now {{status}}. Reach out to support if this looks wrong.",
	TemplateSubscriptionCanceled:    "Hi {{businessName}}! Your subscription has been cancelled. Your data is retained for 30 days if you change your mind.",
	TemplateConnectEnabled:          "Hi {{businessName}}! Your payout account is fully verified. You can now charge clients directly from the dashboard.",
}

const fallbackTemplate = "Message from {{businessName}}"

// DefaultTemplate returns the built-in body for a template key.
func DefaultTemplate(key string) string {
	if body, ok := defaultTemplates[strings.TrimSpace(key)]; ok {
		return body
	}
	return fallbackTemplate
}

// RenderTemplate substitutes {{name}} placeholders. Unknown placeholders
// render as empty strings rather than leaking braces to customers.
func RenderTemplate(body string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return variables[name]
	})
}

// FAQAnswer returns the canned reply for a topic.
func FAQAnswer(topic FAQTopic) string {
	switch topic {
	case FAQTopicCost:
		return "Please check our website or call for current pricing. We'd be happy to discuss your needs!"
	case FAQTopicLicensed:
		return "Yes, we are fully licensed and insured. Happy to share details on request!"
	case FAQTopicServiceArea:
		return "We serve the greater local area. Send us your address and we'll confirm coverage!"
	case FAQTopicAvailability:
		return "You can book online at our website or give us a call. What service are you interested in?"
	default:
		return ""
	}
}
