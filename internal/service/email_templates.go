package service

import (
	"fmt"
	"strings"
)

func welcomeEmailTemplate(name, dashboardURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Tell us about a goal and we'll draft a step-by-step plan for it. Check in as
you go and watch your streak grow.

Get started: %s

Best,
The %s Team`, name, dashboardURL, appName)

	return subject, body
}

func reminderEmailTemplate(name string, goalTitles []string, streak int, dashboardURL, appName string) (string, string) {
	subject := "A quick check-in on your goals"

	var goals strings.Builder
	for _, title := range goalTitles {
		fmt.Fprintf(&goals, "- %s\n", title)
	}

	streakLine := "Log a check-in today to start a streak."
	if streak > 0 {
		streakLine = fmt.Sprintf("You're on a %d-day streak. Check in today to keep it going.", streak)
	}

	body := fmt.Sprintf(`Hi %s,

You haven't checked in today. Your active goals:
%s
%s

Check in: %s

Best,
The %s Team`, name, goals.String(), streakLine, dashboardURL, appName)

	return subject, body
}

func accountDeletedEmailTemplate(name, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s account has been deleted", appName)
	body := fmt.Sprintf(`Hi %s,

Your account and all of its goals, steps and check-ins have been permanently deleted.

If this wasn't you, reply to this email right away.

Best,
The %s Team`, name, appName)

	return subject, body
}
