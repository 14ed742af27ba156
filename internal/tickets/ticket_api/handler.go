package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-event-tickets/internal/auth"
	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"
	"ms-event-tickets/internal/tickets/qr"
	tickets "ms-event-tickets/internal/tickets/service"
	"ms-event-tickets/internal/tickets/template"
	"ms-event-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	qrImageSize          = 256
)

type TicketService interface {
	Issue(ctx context.Context, req tickets.IssueRequest) (*models.Ticket, error)
	ListAll(ctx context.Context) ([]models.Ticket, error)
	FindByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	Validate(ctx context.Context, code string) (*models.Ticket, error)
	Cancel(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
}

type Handler struct {
	TicketService TicketService
	QRGenerator   *qr.QRGenerator
	PDFGenerator  *template.TicketPDFGenerator
	Logger        *logger.Logger
}

func NewHandler(ticketService TicketService, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		QRGenerator:   qrGen,
		PDFGenerator:  template.NewTicketPDFGenerator(),
		Logger:        log,
	}
}

// RegisterRoutes mounts the ticket routes. Mutating routes go through
// protect when it is non-nil.
func (h *Handler) RegisterRoutes(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Get("/count", h.GetTotalTicketsCount)
		r.Get("/{ticketId}", h.ViewTicket)
		r.Get("/{ticketId}/qr", h.TicketQR)
		r.Get("/{ticketId}/pdf", h.TicketPDF)

		r.Group(func(r chi.Router) {
			if protect != nil {
				r.Use(protect)
			}
			r.Post("/", h.IssueTicket)
			r.Post("/validate", h.ValidateTicket)
			r.Post("/{ticketId}/cancel", h.CancelTicket)
		})
	})
}

func (h *Handler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var req models.IssueTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if err := utils.ValidateStruct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if req.OwnerName != nil && strings.TrimSpace(*req.OwnerName) == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "owner_name must not be empty"))
		return
	}

	ticket, err := h.TicketService.Issue(r.Context(), tickets.IssueRequest{
		EventID:        req.EventID,
		OwnerName:      req.OwnerName,
		Price:          req.Price,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.writeError(w, "Failed to issue ticket", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Ticket issued", ticket))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.ListAll(r.Context())
	if err != nil {
		h.writeError(w, "Failed to fetch tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets retrieved", list))
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	ticket, err := h.TicketService.FindByID(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "Failed to fetch ticket", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket retrieved", ticket))
}

// TicketQR renders the ticket's encrypted QR code as a PNG.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	ticket, err := h.TicketService.FindByID(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "Failed to fetch ticket", err)
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(*ticket, qrImageSize)
	if err != nil {
		h.writeError(w, "Failed to render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// TicketPDF renders a printable ticket with its QR code embedded.
func (h *Handler) TicketPDF(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	ticket, err := h.TicketService.FindByID(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "Failed to fetch ticket", err)
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(*ticket, qrImageSize)
	if err != nil {
		h.writeError(w, "Failed to render QR code", err)
		return
	}
	pdf, err := h.PDFGenerator.Generate(*ticket, png)
	if err != nil {
		h.writeError(w, "Failed to render ticket", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=ticket-%s.pdf", ticket.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// ValidateTicket checks a ticket in. Expected POST body:
// {"code": "..."} or {"encrypted_qr": "..."}
func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" && req.EncryptedQR != "" {
		payload, err := h.QRGenerator.DecryptQRData(req.EncryptedQR)
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid QR code", err.Error()))
			return
		}
		code = payload.Code
	}
	if code == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "code or encrypted_qr is required"))
		return
	}

	ticket, err := h.TicketService.Validate(r.Context(), code)
	if err != nil {
		h.writeError(w, "Validation failed", err)
		return
	}
	if actor := auth.Actor(r.Context()); actor != "" {
		h.Logger.LogTicket("VALIDATED", ticket.ID, fmt.Sprintf("by %s", actor))
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket validated", ticket))
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	ticket, err := h.TicketService.Cancel(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, "Cancellation failed", err)
		return
	}
	if actor := auth.Actor(r.Context()); actor != "" {
		h.Logger.LogTicket("CANCELLED", ticket.ID, fmt.Sprintf("by %s", actor))
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket cancelled", ticket))
}

// ticketIDParam reads {ticketId} and answers 400 when it is not a uuid.
func ticketIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "ticketId")
	if _, err := uuid.Parse(id); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid ticket id", err.Error()))
		return "", false
	}
	return id, true
}

// writeError maps the ticket error taxonomy onto HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrEventNotFound), errors.Is(err, models.ErrTicketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrCapacityExhausted),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrIssuanceInProgress),
		errors.Is(err, models.ErrIdempotencyKeyReused):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidPrice):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
		// Storage details stay in the log.
		if errors.Is(err, models.ErrIssuanceFailed) {
			err = models.ErrIssuanceFailed
		}
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, err.Error()))
}
