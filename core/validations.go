package core

import (
	"errors"
	"strings"
	"unicode/utf8"
)

func ValidateEvent(event Event) error {
	title := strings.TrimSpace(event.Title)
	if len(title) == 0 {
		return errors.New("title is required")
	}

	if utf8.RuneCountInString(title) > 100 {
		return errors.New("title is too long (100 characters tops)")
	}

	// The classifier relies on every stored event carrying a time.
	if event.EventTime.IsZero() {
		return errors.New("event time is required")
	}

	if len(strings.TrimSpace(event.UserId)) == 0 {
		return errors.New("user id is required")
	}

	return nil
}

func ValidateUser(user User) error {
	username := strings.TrimSpace(user.Username)
	if len(username) == 0 {
		return errors.New("username is required")
	}

	if utf8.RuneCountInString(username) > 50 {
		return errors.New("username is too long (50 characters tops)")
	}

	if utf8.RuneCountInString(user.Password) < 8 {
		return errors.New("password is too short (8 characters minimum)")
	}

	// bcrypt ignores anything past 72 bytes
	if len(user.Password) > 72 {
		return errors.New("password is too long (72 bytes tops)")
	}

	return nil
}
