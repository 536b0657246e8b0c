package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name    string
		event   Event
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid event",
			event: Event{
				Title:     "Valid Title",
				EventTime: now,
				UserId:    "user-1",
			},
			wantErr: false,
		},
		{
			name: "empty title",
			event: Event{
				Title:     "   ",
				EventTime: now,
				UserId:    "user-1",
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "title too long",
			event: Event{
				Title:     strings.Repeat("a", 101),
				EventTime: now,
				UserId:    "user-1",
			},
			wantErr: true,
			errMsg:  "title is too long (100 characters tops)",
		},
		{
			name: "multibyte title within limit",
			event: Event{
				Title:     strings.Repeat("ж", 100),
				EventTime: now,
				UserId:    "user-1",
			},
			wantErr: false,
		},
		{
			name: "missing event time",
			event: Event{
				Title:  "Valid Title",
				UserId: "user-1",
			},
			wantErr: true,
			errMsg:  "event time is required",
		},
		{
			name: "missing owner",
			event: Event{
				Title:     "Valid Title",
				EventTime: now,
			},
			wantErr: true,
			errMsg:  "user id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateEvent(tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		user    User
		wantErr bool
		errMsg  string
	}{
		{name: "valid user", user: User{Username: "alice", Password: "s3cretpass"}},
		{name: "empty username", user: User{Username: " ", Password: "s3cretpass"}, wantErr: true, errMsg: "username is required"},
		{name: "username too long", user: User{Username: strings.Repeat("u", 51), Password: "s3cretpass"}, wantErr: true, errMsg: "username is too long"},
		{name: "password too short", user: User{Username: "alice", Password: "short"}, wantErr: true, errMsg: "password is too short"},
		{name: "password too long", user: User{Username: "alice", Password: strings.Repeat("p", 73)}, wantErr: true, errMsg: "password is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateUser(tt.user)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
