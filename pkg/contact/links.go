// Package contact builds the outbound WhatsApp and mailto links shown next to
// offers.
package contact

import (
	"fmt"
	"net/url"
	"strings"

	"cryptocagua/model"
)

// Digits keeps only ASCII digits, the form wa.me accepts.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// WhatsAppLink returns "" when phone has no digits.
func WhatsAppLink(phone, text string) string {
	digits := Digits(phone)
	if digits == "" {
		return ""
	}
	link := "https://wa.me/" + digits
	if text != "" {
		link += "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	}
	return link
}

// OfferContactLink opens a chat with the poster about the offer.
func OfferContactLink(o model.Offer) string {
	return WhatsAppLink(o.ContactInfo, fmt.Sprintf("Hi @%s, I'm interested in your offer %q", o.Nickname, o.Title))
}

// AdminReviewLink lets a poster ask the admin to review a fresh submission.
func AdminReviewLink(adminPhone, title string) string {
	return WhatsAppLink(adminPhone, fmt.Sprintf("Hi Admin, I just submitted the offer %q and am waiting for review.", title))
}

// RatingSuggestionLink sends a rating suggestion to the admin. Ratings are
// applied by the admin by hand; nothing stored changes here.
func RatingSuggestionLink(adminPhone string, o model.Offer, stars int) string {
	if stars < 1 {
		stars = 1
	}
	if stars > 5 {
		stars = 5
	}
	return WhatsAppLink(adminPhone, fmt.Sprintf("Rating suggestion: %d/5 for @%s (offer %q, id %s).", stars, o.Nickname, o.Title, o.ID))
}

// MailtoLink returns "" when email is empty.
func MailtoLink(email, subject, body string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if body != "" {
		q.Set("body", body)
	}
	link := "mailto:" + email
	if len(q) > 0 {
		// mailto readers expect %20, not '+'
		link += "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
	}
	return link
}
