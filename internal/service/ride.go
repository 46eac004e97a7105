package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	maxBookSeats = 6
)

// Preference tokens accepted on ride creation.
const (
	prefPets      = "pets"
	prefNoSmoking = "nosmoking"
)

// RideStore is the ride persistence RideService depends on.
type RideStore interface {
	List(ctx context.Context, q model.RideQuery) ([]model.Ride, int, error)
	GetByID(ctx context.Context, id int64) (*model.Ride, error)
	Create(ctx context.Context, nr model.NewRide) (int64, error)
}

// BookingStore is the booking persistence RideService depends on.
type BookingStore interface {
	Book(ctx context.Context, rideID, passengerID int64, seats int, now time.Time) (*model.Booking, error)
	ListByPassenger(ctx context.Context, passengerID int64) ([]model.Booking, error)
}

// RideService orchestrates ride listing, publication and booking.
type RideService struct {
	rides    RideStore
	bookings BookingStore
	loc      *time.Location
	now      func() time.Time
}

// NewRideService constructs a RideService. Dates and times sent by clients
// are interpreted in loc.
func NewRideService(rides RideStore, bookings BookingStore, loc *time.Location) *RideService {
	if loc == nil {
		loc = time.UTC
	}
	return &RideService{rides: rides, bookings: bookings, loc: loc, now: time.Now}
}

// ClampPage applies the pagination bounds: page is kept within
// [1, model.MaxPage], a missing or non-positive limit becomes the default
// and limits above the maximum are capped.
func ClampPage(page, limit int) (int, int) {
	switch {
	case page < 1:
		page = 1
	case page > model.MaxPage:
		page = model.MaxPage
	}
	switch {
	case limit < 1:
		limit = model.DefaultPageSize
	case limit > model.MaxPageSize:
		limit = model.MaxPageSize
	}
	return page, limit
}

// List returns one page of upcoming active rides.
func (s *RideService) List(ctx context.Context, in model.RideListInput) (*model.RidePage, error) {
	q := s.baseQuery(in)
	return s.page(ctx, q, nil)
}

// Search is List narrowed by departure city, arrival city and day.
func (s *RideService) Search(ctx context.Context, in model.RideListInput, search model.RideSearch) (*model.RidePage, error) {
	search.From = strings.TrimSpace(search.From)
	search.To = strings.TrimSpace(search.To)
	search.Date = strings.TrimSpace(search.Date)

	q := s.baseQuery(in)
	q.From = search.From
	q.To = search.To
	if search.Date != "" {
		day, err := time.ParseInLocation(dateLayout, search.Date, s.loc)
		if err != nil {
			return nil, invalid("date", "field 'date' must match the format YYYY-MM-DD")
		}
		q.Day = &day
	}
	return s.page(ctx, q, &search)
}

func (s *RideService) baseQuery(in model.RideListInput) model.RideQuery {
	page, limit := ClampPage(in.Page, in.Limit)
	filter := in.Filter
	if filter.MaxPrice != nil && *filter.MaxPrice < 0 {
		filter.MaxPrice = nil
	}
	return model.RideQuery{
		Page:   page,
		Limit:  limit,
		Filter: filter,
		Sort:   model.NormalizeSort(in.SortBy),
		Now:    s.now(),
	}
}

func (s *RideService) page(ctx context.Context, q model.RideQuery, search *model.RideSearch) (*model.RidePage, error) {
	rides, total, err := s.rides.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	if rides == nil {
		rides = []model.Ride{}
	}
	return &model.RidePage{
		Rides:       rides,
		Pagination:  model.NewPagination(q.Page, q.Limit, total),
		Filters:     q.Filter,
		SortBy:      q.Sort,
		SortApplied: model.EffectiveSort(q.Sort),
		Search:      search,
	}, nil
}

// Get returns a single ride by id.
func (s *RideService) Get(ctx context.Context, id int64) (*model.Ride, error) {
	if id <= 0 {
		return nil, invalid("id", "ride id must be a positive integer")
	}
	ride, err := s.rides.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return ride, nil
}

// Create validates req and publishes it as a ride driven by driverID.
func (s *RideService) Create(ctx context.Context, driverID int64, req model.CreateRideRequest) (int64, error) {
	if driverID <= 0 {
		return 0, ErrUnauthenticated
	}

	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if err := validateStruct(req); err != nil {
		return 0, err
	}

	departure, err := time.ParseInLocation(dateLayout+" "+timeLayout, req.Date+" "+req.Time, s.loc)
	if err != nil {
		return 0, invalid("date", "departure date and time are invalid")
	}
	if departure.Before(s.now()) {
		return 0, invalid("date", "departure date cannot be in the past")
	}

	fuel, ok := model.FuelTypeFor(req.VehicleType)
	if !ok {
		return 0, invalid("vehicleType", "field 'vehicleType' must be one of: electric, hybrid, gasoline")
	}

	id, err := s.rides.Create(ctx, model.NewRide{
		DriverID:          driverID,
		DepartureCity:     req.From,
		ArrivalCity:       req.To,
		DepartureDatetime: departure,
		PricePerSeat:      req.Price,
		Seats:             req.Seats,
		Description:       strings.TrimSpace(req.Description),
		DepartureAddress:  strings.TrimSpace(req.MeetingPoint),
		PetsAllowed:       slices.Contains(req.Preferences, prefPets),
		SmokingAllowed:    !slices.Contains(req.Preferences, prefNoSmoking),
		Vehicle: model.VehicleSpec{
			FuelType: fuel,
			Brand:    strings.TrimSpace(req.VehicleBrand),
			Model:    strings.TrimSpace(req.VehicleModel),
		},
	})
	if err != nil {
		if errors.Is(err, repository.ErrInactiveUser) {
			return 0, ErrUnauthenticated
		}
		return 0, fmt.Errorf("create ride: %w", err)
	}
	return id, nil
}

// Book reserves seats on rideID for passengerID. Zero seats means one.
func (s *RideService) Book(ctx context.Context, passengerID, rideID int64, seats int) (*model.Booking, error) {
	if passengerID <= 0 {
		return nil, ErrUnauthenticated
	}
	if rideID <= 0 {
		return nil, invalid("id", "ride id must be a positive integer")
	}
	if seats == 0 {
		seats = 1
	}
	if seats < 1 || seats > maxBookSeats {
		return nil, invalid("seats", "field 'seats' must be between 1 and %d", maxBookSeats)
	}

	booking, err := s.bookings.Book(ctx, rideID, passengerID, seats, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInactiveUser):
			return nil, ErrUnauthenticated
		case errors.Is(err, repository.ErrNotFound),
			errors.Is(err, repository.ErrOwnRide),
			errors.Is(err, repository.ErrRideNotOpen),
			errors.Is(err, repository.ErrAlreadyBooked),
			errors.Is(err, repository.ErrNotEnoughSeats),
			errors.Is(err, repository.ErrInsufficientCredits):
			return nil, err
		}
		return nil, fmt.Errorf("book ride: %w", err)
	}
	return booking, nil
}

// Bookings lists the bookings made by passengerID.
func (s *RideService) Bookings(ctx context.Context, passengerID int64) ([]model.Booking, error) {
	if passengerID <= 0 {
		return nil, ErrUnauthenticated
	}
	bookings, err := s.bookings.ListByPassenger(ctx, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return bookings, nil
}
