package mail

import (
	"fmt"
	"time"
)

func Welcome(name, email, role string) Message {
	text := fmt.Sprintf("Hi %s,\n\nWelcome aboard! Your account has been created.", name)
	if role == "agent" {
		text += "\n\nYour agent account is pending approval. We will let you know once an administrator has reviewed it."
	}
	return Message{
		To:      email,
		ToName:  name,
		Subject: "Welcome to Real Estate",
		Text:    text,
		HTML:    paragraphs(text),
	}
}

func SubscriptionReminder(name, email string, daysLeft int) Message {
	when := fmt.Sprintf("in %d days", daysLeft)
	switch daysLeft {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	text := fmt.Sprintf("Hi %s,\n\nYour featured listing subscription expires %s. Renew it to keep your properties featured.", name, when)
	return Message{
		To:      email,
		ToName:  name,
		Subject: "Your subscription is about to expire",
		Text:    text,
		HTML:    paragraphs(text),
	}
}

func SubscriptionConfirmation(name, email string, expiry time.Time) Message {
	text := fmt.Sprintf("Hi %s,\n\nThank you for subscribing. Your featured listing subscription is active until %s.",
		name, expiry.Format("January 2, 2006"))
	return Message{
		To:      email,
		ToName:  name,
		Subject: "Subscription confirmed",
		Text:    text,
		HTML:    paragraphs(text),
	}
}

func PasswordReset(name, email, link string) Message {
	text := fmt.Sprintf("Hi %s,\n\nWe received a request to reset your password. Use the link below within one hour:\n\n%s\n\nIf you did not ask for this you can ignore this email.", name, link)
	return Message{
		To:      email,
		ToName:  name,
		Subject: "Password reset",
		Text:    text,
		HTML:    paragraphs(text),
	}
}

func paragraphs(text string) string {
	var html string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			html += "<p>" + text[start:i] + "</p>"
			start = i + 2
			i++
		}
	}
	return html + "<p>" + text[start:] + "</p>"
}
