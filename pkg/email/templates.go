package email

import (
	"fmt"
	"html"
	"strings"
)

// NoticeData feeds the notification templates. Message content and clinical
// values never go into an email; recipients follow the link to read them.
type NoticeData struct {
	To      string
	Name    string
	AppName string
	BaseURL string
}

func (d NoticeData) greetingName() string {
	if strings.TrimSpace(d.Name) == "" {
		return "there"
	}
	return d.Name
}

func (d NoticeData) link(p string) string {
	return strings.TrimRight(d.BaseURL, "/") + p
}

// BuildNewMessageEmail tells a user they have an unread message.
func BuildNewMessageEmail(d NoticeData) Message {
	url := d.link("/messages")
	subject := fmt.Sprintf("You have a new message on %s", d.AppName)
	text := fmt.Sprintf("Hi %s,\n\nYou have received a new secure message on %s.\n\nSign in to read it: %s\n\nThe %s Team",
		d.greetingName(), d.AppName, url, d.AppName)

	return Message{
		To:       []string{d.To},
		Subject:  subject,
		TextBody: text,
		HTMLBody: wrapHTML(d.greetingName(),
			fmt.Sprintf("You have received a new secure message on %s.", html.EscapeString(d.AppName)),
			url, "Read message", d.AppName),
	}
}

// BuildArtifactReadyEmail tells a patient a summary or risk review was added
// to one of their results.
func BuildArtifactReadyEmail(d NoticeData, kindLabel, resultID string) Message {
	url := d.link("/results/" + resultID)
	subject := fmt.Sprintf("Your test result has a new %s", kindLabel)
	text := fmt.Sprintf("Hi %s,\n\nYour care team added a new %s to one of your test results.\n\nView it here: %s\n\nThe %s Team",
		d.greetingName(), kindLabel, url, d.AppName)

	return Message{
		To:       []string{d.To},
		Subject:  subject,
		TextBody: text,
		HTMLBody: wrapHTML(d.greetingName(),
			fmt.Sprintf("Your care team added a new %s to one of your test results.", html.EscapeString(kindLabel)),
			url, "View result", d.AppName),
	}
}

func wrapHTML(name, line, url, button, appName string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #0f766e;">Hi %s,</h2>
    <p>%s</p>
    <p style="text-align: center; margin: 30px 0;">
        <a href="%s" style="background-color: #0f766e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">%s</a>
    </p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">The %s Team</p>
</body>
</html>`, html.EscapeString(name), line, html.EscapeString(url), button, html.EscapeString(appName))
}
