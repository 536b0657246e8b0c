package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandlers_PostUsers(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		body           any
		callsRepo      bool
		mockErr        error
		expectedStatus int
	}{
		{
			name:           "success",
			body:           User{Username: " alice ", Password: "correct horse"},
			callsRepo:      true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "short password",
			body:           User{Username: "alice", Password: "short"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing username",
			body:           User{Password: "correct horse"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "username taken",
			body:           User{Username: "alice", Password: "correct horse"},
			callsRepo:      true,
			mockErr:        ErrUsernameTaken,
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "invalid json",
			body:           "[",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockUsers := new(MockUserRepository)
			if tt.callsRepo {
				var saved *User
				if tt.mockErr == nil {
					saved = &User{Id: "user-1", Username: "alice", PasswordHash: "stored-hash", CreatedAt: handlerNow}
				}

				mockUsers.On("SaveUser", mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Username == "alice" && u.Password == "" && CheckPassword(u.PasswordHash, "correct horse") == nil
				})).Return(saved, tt.mockErr)
			}

			h := newTestHandlers(nil, mockUsers, nil)
			c, w := newHandlerContext(http.MethodPost, "/api/users", jsonBody(t, tt.body), "")

			h.PostUsers(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockUsers.AssertExpectations(t)

			if tt.expectedStatus == http.StatusCreated {
				assert.NotContains(t, w.Body.String(), "stored-hash")
				assert.NotContains(t, w.Body.String(), "password")

				var got User
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, "user-1", got.Id)
			}
		})
	}
}

func TestHandlers_PostLogin(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	stored := &User{Id: "user-1", Username: "alice", PasswordHash: hash}

	tests := []struct {
		name           string
		body           any
		mockReturn     *User
		mockErr        error
		callsRepo      bool
		expectedStatus int
	}{
		{
			name:           "success",
			body:           credentials{Username: "alice", Password: "correct horse"},
			mockReturn:     stored,
			callsRepo:      true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "wrong password",
			body:           credentials{Username: "alice", Password: "battery staple"},
			mockReturn:     stored,
			callsRepo:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown user",
			body:           credentials{Username: "alice", Password: "correct horse"},
			mockErr:        ErrUserNotFound,
			callsRepo:      true,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "repository failure",
			body:           credentials{Username: "alice", Password: "correct horse"},
			mockErr:        errors.New("db error"),
			callsRepo:      true,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "invalid json",
			body:           "nope",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockUsers := new(MockUserRepository)
			if tt.callsRepo {
				mockUsers.On("GetUserByUsername", mock.Anything, "alice").Return(tt.mockReturn, tt.mockErr)
			}

			h := newTestHandlers(nil, mockUsers, nil)
			c, w := newHandlerContext(http.MethodPost, "/api/users/login", jsonBody(t, tt.body), "")

			h.PostLogin(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockUsers.AssertExpectations(t)

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var got session
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "user-1", got.User.Id)

			claims, err := NewTokens("secret", "taskmanager", time.Hour, fixedClock(handlerNow)).Verify(got.Token)
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.Subject)
		})
	}
}

func TestHandlers_GetUsers(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		userId         string
		mockReturn     *User
		mockErr        error
		callsRepo      bool
		expectedStatus int
	}{
		{
			name:           "success",
			userId:         "user-1",
			mockReturn:     &User{Id: "user-1", Username: "alice", PasswordHash: "stored-hash"},
			callsRepo:      true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not found",
			userId:         "user-1",
			mockErr:        ErrUserNotFound,
			callsRepo:      true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "another user",
			userId:         "user-2",
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockUsers := new(MockUserRepository)
			if tt.callsRepo {
				mockUsers.On("GetUserById", mock.Anything, tt.userId).Return(tt.mockReturn, tt.mockErr)
			}

			h := newTestHandlers(nil, mockUsers, nil)
			c, w := newHandlerContext(http.MethodGet, "/api/users/"+tt.userId, nil, "user-1",
				gin.Param{Key: "userId", Value: tt.userId})

			h.GetUsers(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "stored-hash")
			mockUsers.AssertExpectations(t)
		})
	}
}
