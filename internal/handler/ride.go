package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
	"github.com/ecoride/carpool/internal/service"
	"github.com/ecoride/carpool/internal/session"
)

// RideServicer is the ride behaviour the handlers need.
type RideServicer interface {
	List(ctx context.Context, in model.RideListInput) (*model.RidePage, error)
	Search(ctx context.Context, in model.RideListInput, search model.RideSearch) (*model.RidePage, error)
	Get(ctx context.Context, id int64) (*model.Ride, error)
	Create(ctx context.Context, driverID int64, req model.CreateRideRequest) (int64, error)
	Book(ctx context.Context, passengerID, rideID int64, seats int) (*model.Booking, error)
	Bookings(ctx context.Context, passengerID int64) ([]model.Booking, error)
}

// RideHandler holds the HTTP handlers for rides and bookings.
type RideHandler struct {
	responder
	svc RideServicer
}

// NewRideHandler constructs a RideHandler.
func NewRideHandler(svc RideServicer, log *zap.Logger, debug bool) *RideHandler {
	return &RideHandler{responder: responder{log: log, debug: debug}, svc: svc}
}

type ridePageResponse struct {
	Success bool `json:"success"`
	*model.RidePage
}

// List handles GET /api/rides
func (h *RideHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), parseListInput(r.URL.Query()))
	if err != nil {
		if validationError(w, err) {
			return
		}
		h.serverError(w, r, "failed to list rides", err)
		return
	}
	writeJSON(w, http.StatusOK, ridePageResponse{Success: true, RidePage: page})
}

// Search handles GET /api/rides/search
func (h *RideHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := model.RideSearch{From: q.Get("from"), To: q.Get("to"), Date: q.Get("date")}

	page, err := h.svc.Search(r.Context(), parseListInput(q), search)
	if err != nil {
		if validationError(w, err) {
			return
		}
		h.serverError(w, r, "failed to search rides", err)
		return
	}
	writeJSON(w, http.StatusOK, ridePageResponse{Success: true, RidePage: page})
}

// Get handles GET /api/rides/{id}
func (h *RideHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	ride, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if validationError(w, err) {
			return
		}
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}
		h.serverError(w, r, "failed to get ride", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ride": ride})
}

// Create handles POST /api/rides/create
// The caller must hold a session; the ride is published in their name.
func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req model.CreateRideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := h.svc.Create(r.Context(), ident.UserID, req)
	if err != nil {
		if validationError(w, err) {
			return
		}
		if errors.Is(err, service.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		h.serverError(w, r, "failed to create ride", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "ride created",
		"rideId":  id,
	})
}

// Book handles POST /api/rides/{id}/book
func (h *RideHandler) Book(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id, ok := rideID(w, r)
	if !ok {
		return
	}

	var req model.BookRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errNoBody) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := h.svc.Book(r.Context(), ident.UserID, id, req.Seats)
	if err != nil {
		if validationError(w, err) {
			return
		}
		switch {
		case errors.Is(err, service.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "authentication required")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "ride not found")
		case errors.Is(err, repository.ErrOwnRide):
			writeError(w, http.StatusBadRequest, "you cannot book your own ride")
		case errors.Is(err, repository.ErrRideNotOpen):
			writeError(w, http.StatusConflict, "ride is no longer open for booking")
		case errors.Is(err, repository.ErrAlreadyBooked):
			writeError(w, http.StatusConflict, "you have already booked this ride")
		case errors.Is(err, repository.ErrNotEnoughSeats):
			writeError(w, http.StatusConflict, "not enough seats available")
		case errors.Is(err, repository.ErrInsufficientCredits):
			writeError(w, http.StatusConflict, "not enough credits")
		default:
			h.serverError(w, r, "failed to book ride", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "booking": booking})
}

// Bookings handles GET /api/bookings
func (h *RideHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	ident, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookings, err := h.svc.Bookings(r.Context(), ident.UserID)
	if err != nil {
		h.serverError(w, r, "failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bookings})
}

// rideID parses the {id} URL parameter, writing a 400 when it is not a
// positive integer.
func rideID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "ride id must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseListInput reads pagination, filters and sort from the query string.
// Malformed numbers are left at zero for the service to default and
// malformed booleans read as false.
func parseListInput(q url.Values) model.RideListInput {
	in := model.RideListInput{
		Page:   queryInt(q, "page"),
		Limit:  queryInt(q, "limit"),
		SortBy: q.Get("sort_by"),
		Filter: model.RideFilter{
			EcoOnly:     queryBool(q, "eco_only"),
			PetsAllowed: queryBool(q, "pets_allowed"),
			NonSmoking:  queryBool(q, "non_smoking"),
		},
	}
	if v := q.Get("max_price"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(p) {
			in.Filter.MaxPrice = &p
		}
	}
	return in
}

func queryInt(q url.Values, key string) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil {
		return 0
	}
	return n
}

func queryBool(q url.Values, key string) bool {
	b, err := strconv.ParseBool(q.Get(key))
	return err == nil && b
}
