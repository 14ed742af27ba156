package event_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"
	"ms-event-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
)

type EventService interface {
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
}

type Handler struct {
	EventService EventService
	Logger       *logger.Logger
	// Stream serves GET /events/{eventId}/stream when set.
	Stream http.HandlerFunc
}

func NewHandler(eventService EventService, log *logger.Logger) *Handler {
	return &Handler{EventService: eventService, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{eventId}", h.GetEvent)
		if h.Stream != nil {
			r.Get("/{eventId}/stream", h.Stream)
		}

		r.Group(func(r chi.Router) {
			if protect != nil {
				r.Use(protect)
			}
			r.Post("/", h.CreateEvent)
		})
	})
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req models.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), req)
	if err != nil {
		h.writeError(w, "Failed to create event", err)
		return
	}
	h.Logger.Info("EVENT", fmt.Sprintf("Created event %s with capacity %d", event.ID, event.TotalCapacity))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.EventService.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		h.writeError(w, "Failed to fetch event", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event retrieved", event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.EventService.ListEvents(r.Context())
	if err != nil {
		h.writeError(w, "Failed to fetch events", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events retrieved", events))
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, models.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse(message, err.Error()))
	case errors.Is(err, models.ErrInvalidEvent):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(message, err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(message, "internal error"))
	}
}
