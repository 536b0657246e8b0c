package core

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (h *handlers) PostUsers(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var user User

	err := gctx.ShouldBindJSON(&user)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "failed to bind JSON", err)
		return
	}

	user.Username = strings.TrimSpace(user.Username)

	err = ValidateUser(user)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "user validation failed", err)
		return
	}

	user.PasswordHash, err = HashPassword(user.Password)
	if err != nil {
		abortWith(gctx, http.StatusInternalServerError, "hashing password failed", err)
		return
	}

	user.Password = ""

	savedUser, err := h.users.SaveUser(ctx, &user)
	if err != nil {
		abortWith(gctx, StatusFor(err), "saving user failed", err)
		return
	}

	log.Ctx(ctx).Info().Str("user_id", savedUser.Id).Msg("user registered")

	gctx.JSON(http.StatusCreated, savedUser.Public())
}

func (h *handlers) PostLogin(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var creds credentials

	err := gctx.ShouldBindJSON(&creds)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "failed to bind JSON", err)
		return
	}

	user, err := h.users.GetUserByUsername(ctx, strings.TrimSpace(creds.Username))
	if errors.Is(err, ErrUserNotFound) {
		// unknown usernames look exactly like wrong passwords
		abortWith(gctx, http.StatusUnauthorized, "login failed", ErrInvalidCredentials)
		return
	}

	if err != nil {
		abortWith(gctx, StatusFor(err), "login failed", err)
		return
	}

	err = CheckPassword(user.PasswordHash, creds.Password)
	if err != nil {
		abortWith(gctx, http.StatusUnauthorized, "login failed", err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		abortWith(gctx, http.StatusInternalServerError, "issuing token failed", err)
		return
	}

	gctx.JSON(http.StatusOK, session{Token: token, User: user.Public()})
}

func (h *handlers) GetUsers(gctx *gin.Context) {
	userId, ok := ownedUser(gctx)
	if !ok {
		return
	}

	user, err := h.users.GetUserById(gctx.Request.Context(), userId)
	if err != nil {
		abortWith(gctx, StatusFor(err), "getting user failed", err)
		return
	}

	gctx.JSON(http.StatusOK, user.Public())
}
