package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name    string
		from    ApplicationStatus
		to      ApplicationStatus
		allowed bool
	}{
		{"submitted to review", ApplicationStatusSubmitted, ApplicationStatusUnderReview, true},
		{"review to admitted", ApplicationStatusUnderReview, ApplicationStatusAdmitted, true},
		{"admitted to accepted", ApplicationStatusAdmitted, ApplicationStatusOfferAccepted, true},
		{"admitted to declined", ApplicationStatusAdmitted, ApplicationStatusOfferDeclined, true},
		{"accepted to payment", ApplicationStatusOfferAccepted, ApplicationStatusPaymentSubmitted, true},
		{"accepted straight to enrolled", ApplicationStatusOfferAccepted, ApplicationStatusEnrolled, true},
		{"payment to enrolled", ApplicationStatusPaymentSubmitted, ApplicationStatusEnrolled, true},
		{"no skipping review", ApplicationStatusSubmitted, ApplicationStatusAdmitted, false},
		{"no regression", ApplicationStatusAdmitted, ApplicationStatusUnderReview, false},
		{"declined is terminal", ApplicationStatusOfferDeclined, ApplicationStatusUnderReview, false},
		{"enrolled is terminal", ApplicationStatusEnrolled, ApplicationStatusPaymentSubmitted, false},
		{"no enrolling from admitted", ApplicationStatusAdmitted, ApplicationStatusEnrolled, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(ApplicationStatusOfferDeclined))
	assert.True(t, IsTerminalStatus(ApplicationStatusEnrolled))
	assert.False(t, IsTerminalStatus(ApplicationStatusSubmitted))
	assert.False(t, IsTerminalStatus(ApplicationStatusOfferAccepted))
}

func TestCanEnrollFrom(t *testing.T) {
	assert.True(t, CanEnrollFrom(ApplicationStatusPaymentSubmitted))
	assert.True(t, CanEnrollFrom(ApplicationStatusOfferAccepted))
	assert.False(t, CanEnrollFrom(ApplicationStatusAdmitted))
	assert.False(t, CanEnrollFrom(ApplicationStatusOfferDeclined))
	assert.False(t, CanEnrollFrom(ApplicationStatusEnrolled))
}
