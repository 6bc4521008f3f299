package services

import (
	"fmt"
	"strings"

	"guestflow/internal/domain"
)

// Message bodies for the three outbound kinds. Kept together so copy changes
// stay in one place.

func invitationBody(event *domain.Event, baseURL, token string) string {
	when := "soon"
	if event.Date != nil {
		when = event.Date.Format("Jan 2, 2006")
	}
	link := fmt.Sprintf("%s/rsvp/%s", strings.TrimSuffix(baseURL, "/"), token)
	return fmt.Sprintf("You're invited to %s on %s! Please RSVP here: %s", event.Name, when, link)
}

func reminderBody(eventName string, hoursRemaining int) string {
	return fmt.Sprintf("Just a reminder: Your invitation to %s will expire in about %d hours. Please respond soon!", eventName, hoursRemaining)
}

func confirmationBody(eventName string, outcome domain.RSVPOutcome, response domain.InviteeStatus) string {
	switch {
	case outcome == domain.RSVPEventFull:
		return fmt.Sprintf("Sorry, %s is now at full capacity.", eventName)
	case response == domain.StatusYes:
		return fmt.Sprintf("Great! You're confirmed for %s. We'll send you more details soon.", eventName)
	case response == domain.StatusNo:
		return fmt.Sprintf("Thanks for letting us know you can't make it to %s.", eventName)
	}
	return "Thanks for your response!"
}
