package core

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handlers interface {
	Health(gctx *gin.Context)

	PostEvents(gctx *gin.Context)
	GetEvents(gctx *gin.Context)
	PutEvents(gctx *gin.Context)
	DeleteEvents(gctx *gin.Context)
	GetUserEvents(gctx *gin.Context)
	GetUpcomingEvents(gctx *gin.Context)
	GetUserCalendar(gctx *gin.Context)

	GetNotifications(gctx *gin.Context)

	PostUsers(gctx *gin.Context)
	PostLogin(gctx *gin.Context)
	GetUsers(gctx *gin.Context)
}

type handlers struct {
	repository Repository
	users      UserRepository
	notifier   Notifier
	tokens     *Tokens
	clock      Clock
}

func NewHandlers(repository Repository, users UserRepository, notifier Notifier, tokens *Tokens, clock Clock) Handlers {
	return &handlers{
		repository: repository,
		users:      users,
		notifier:   notifier,
		tokens:     tokens,
		clock:      clock,
	}
}

// Register wires every route; everything under /api except registration and
// login sits behind the bearer token middleware.
func Register(router gin.IRouter, h Handlers, tokens *Tokens) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	api.POST("/users", h.PostUsers)
	api.POST("/users/login", h.PostLogin)

	secured := api.Group("", tokens.Middleware())
	secured.GET("/users/:userId", h.GetUsers)
	secured.GET("/users/:userId/events", h.GetUserEvents)
	secured.GET("/users/:userId/events/upcoming", h.GetUpcomingEvents)
	secured.GET("/users/:userId/events/calendar.ics", h.GetUserCalendar)
	secured.GET("/users/:userId/notifications", h.GetNotifications)

	secured.POST("/events", h.PostEvents)
	secured.GET("/events/:id", h.GetEvents)
	secured.PUT("/events/:id", h.PutEvents)
	secured.DELETE("/events/:id", h.DeleteEvents)
}

func abortWith(gctx *gin.Context, status int, message string, err error) {
	logger := log.Ctx(gctx.Request.Context())

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(message)
	} else {
		logger.Info().Err(err).Int("status", status).Msg(message)
	}

	gctx.AbortWithStatusJSON(status, NewError(message, err))
}

// ownedUser checks the :userId path parameter against the token subject.
func ownedUser(gctx *gin.Context) (string, bool) {
	userId := gctx.Param("userId")
	if len(userId) == 0 {
		abortWith(gctx, http.StatusBadRequest, "parameter 'userId' is required", nil)
		return "", false
	}

	if userId != CallerId(gctx) {
		abortWith(gctx, http.StatusForbidden, "access denied", ErrForbidden)
		return "", false
	}

	return userId, true
}

// ownedEvent loads the :id event and checks that the caller owns it.
func (h *handlers) ownedEvent(gctx *gin.Context) (*Event, bool) {
	id := gctx.Param("id")
	if len(id) == 0 {
		abortWith(gctx, http.StatusBadRequest, "parameter 'id' is required", nil)
		return nil, false
	}

	event, err := h.repository.GetEventById(gctx.Request.Context(), id)
	if err != nil {
		abortWith(gctx, StatusFor(err), "getting event failed", err)
		return nil, false
	}

	if event.UserId != CallerId(gctx) {
		abortWith(gctx, http.StatusForbidden, "access denied", ErrForbidden)
		return nil, false
	}

	return event, true
}

func (h *handlers) Health(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var event Event

	// Accepts a JSON payload with title, description and event_time.
	err := gctx.ShouldBindJSON(&event)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "failed to bind JSON", err)
		return
	}

	// Events always belong to the caller.
	caller := CallerId(gctx)
	if event.UserId != "" && event.UserId != caller {
		abortWith(gctx, http.StatusForbidden, "access denied", ErrForbidden)
		return
	}

	event.UserId = caller

	err = ValidateEvent(event)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "event validation failed", err)
		return
	}

	savedEvent, err := h.repository.SaveEvent(ctx, &event)
	if err != nil {
		abortWith(gctx, StatusFor(err), "saving event failed", err)
		return
	}

	log.Ctx(ctx).Info().Str("event_id", savedEvent.Id).Str("user_id", savedEvent.UserId).Msg("event created")

	gctx.JSON(http.StatusCreated, savedEvent)
}

func (h *handlers) GetEvents(gctx *gin.Context) {
	body, err := io.ReadAll(gctx.Request.Body)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	// GET requests carry no body
	if len(body) != 0 {
		abortWith(gctx, http.StatusBadRequest, "request body is not empty", nil)
		return
	}

	event, ok := h.ownedEvent(gctx)
	if !ok {
		return
	}

	gctx.JSON(http.StatusOK, event)
}

func (h *handlers) PutEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var changes Event

	err := gctx.ShouldBindJSON(&changes)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "failed to bind JSON", err)
		return
	}

	existing, ok := h.ownedEvent(gctx)
	if !ok {
		return
	}

	// Ownership cannot move between users.
	changes.Id = existing.Id
	changes.UserId = existing.UserId

	err = ValidateEvent(changes)
	if err != nil {
		abortWith(gctx, http.StatusBadRequest, "event validation failed", err)
		return
	}

	updated, err := h.repository.UpdateEvent(ctx, &changes)
	if err != nil {
		abortWith(gctx, StatusFor(err), "updating event failed", err)
		return
	}

	gctx.JSON(http.StatusOK, updated)
}

func (h *handlers) DeleteEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	event, ok := h.ownedEvent(gctx)
	if !ok {
		return
	}

	err := h.repository.DeleteEvent(ctx, event.Id)
	if err != nil {
		abortWith(gctx, StatusFor(err), "deleting event failed", err)
		return
	}

	log.Ctx(ctx).Info().Str("event_id", event.Id).Msg("event deleted")

	gctx.Status(http.StatusNoContent)
	gctx.Writer.WriteHeaderNow()
}

func (h *handlers) GetUserEvents(gctx *gin.Context) {
	userId, ok := ownedUser(gctx)
	if !ok {
		return
	}

	events, err := h.repository.ListEventsForUser(gctx.Request.Context(), userId)
	if err != nil {
		abortWith(gctx, StatusFor(err), "listing events failed", err)
		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetUpcomingEvents(gctx *gin.Context) {
	userId, ok := ownedUser(gctx)
	if !ok {
		return
	}

	events, err := h.repository.ListUpcomingEvents(gctx.Request.Context(), userId, h.clock())
	if err != nil {
		abortWith(gctx, StatusFor(err), "listing upcoming events failed", err)
		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetUserCalendar(gctx *gin.Context) {
	userId, ok := ownedUser(gctx)
	if !ok {
		return
	}

	events, err := h.repository.ListEventsForUser(gctx.Request.Context(), userId)
	if err != nil {
		abortWith(gctx, StatusFor(err), "listing events failed", err)
		return
	}

	gctx.Header("Content-Disposition", `attachment; filename="events.ics"`)
	gctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(BuildCalendar(events, h.clock())))
}
