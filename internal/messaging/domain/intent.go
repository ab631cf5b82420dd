package domain

import "strings"

// Intent is the closed set of actions an inbound reply can map to. The
// classifier is pure; context checks (pending appointment, active waitlist
// entry) happen in the side-effect handler.
type Intent interface {
	isIntent()
}

type ConfirmIntent struct{}

type CancelIntent struct{}

type WaitlistAcceptIntent struct{}

type WaitlistDeclineIntent struct{}

// FAQTopic identifies a canned-answer topic.
type FAQTopic string

const (
	FAQTopicCost         FAQTopic = "cost"
	FAQTopicLicensed     FAQTopic = "licensed"
	FAQTopicServiceArea  FAQTopic = "service_area"
	FAQTopicAvailability FAQTopic = "availability"
)

type FAQIntent struct {
	Topic FAQTopic
}

type UnknownIntent struct{}

func (ConfirmIntent) isIntent()         {}
func (CancelIntent) isIntent()          {}
func (WaitlistAcceptIntent) isIntent()  {}
func (WaitlistDeclineIntent) isIntent() {}
func (FAQIntent) isIntent()             {}
func (UnknownIntent) isIntent()         {}

var confirmKeywords = map[string]bool{
	"yes": true, "y": true, "confirm": true, "confirmed": true,
}

var cancelKeywords = map[string]bool{
	"no": true, "n": true, "cancel": true, "cancelled": true,
}

var waitlistAcceptKeywords = map[string]bool{
	"accept": true, "yes please": true, "book it": true,
}

var waitlistDeclineKeywords = map[string]bool{
	"decline": true, "not available": true, "pass": true,
}

// faqSubstrings are checked in order so responses are deterministic when a
// message mentions more than one topic.
var faqSubstrings = []struct {
	needle string
	topic  FAQTopic
}{
	{"cost", FAQTopicCost},
	{"price", FAQTopicCost},
	{"licensed", FAQTopicLicensed},
	{"insured", FAQTopicLicensed},
	{"service area", FAQTopicServiceArea},
	{"area", FAQTopicServiceArea},
	{"availability", FAQTopicAvailability},
	{"available", FAQTopicAvailability},
}

// ClassifyIntent maps an inbound reply to an Intent. Exact-match keywords
// for confirm/cancel and waitlist win over FAQ substring matches.
func ClassifyIntent(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return UnknownIntent{}
	}

	switch {
	case confirmKeywords[normalized]:
		return ConfirmIntent{}
	case cancelKeywords[normalized]:
		return CancelIntent{}
	case waitlistAcceptKeywords[normalized]:
		return WaitlistAcceptIntent{}
	case waitlistDeclineKeywords[normalized]:
		return WaitlistDeclineIntent{}
	}

	for _, entry := range faqSubstrings {
		if strings.Contains(normalized, entry.needle) {
			return FAQIntent{Topic: entry.topic}
		}
	}
	return UnknownIntent{}
}
