package model

import (
	"math"
	"time"
)

// RideStatus mirrors the ride_statuses reference table.
type RideStatus int

const (
	StatusOpen       RideStatus = 1
	StatusFull       RideStatus = 2
	StatusInProgress RideStatus = 3
	StatusCompleted  RideStatus = 4
	StatusCancelled  RideStatus = 5
)

// ActiveStatuses are the statuses listed to passengers.
var ActiveStatuses = []RideStatus{StatusOpen, StatusFull}

func (s RideStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusFull:
		return "full"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON payloads.
func (s RideStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Fuel types as persisted in vehicles.fuel_type.
const (
	FuelElectric = "electrique"
	FuelHybrid   = "hybride"
	FuelGasoline = "essence"
)

// FuelTypeFor maps the public vehicle type onto the persisted fuel type.
func FuelTypeFor(vehicleType string) (string, bool) {
	switch vehicleType {
	case "electric":
		return FuelElectric, true
	case "hybrid":
		return FuelHybrid, true
	case "gasoline":
		return FuelGasoline, true
	default:
		return "", false
	}
}

// Ride is a published trip joined with its driver and vehicle attributes.
type Ride struct {
	ID                int64      `json:"id"`
	DriverID          int64      `json:"driver_id"`
	VehicleID         int64      `json:"vehicle_id"`
	DepartureCity     string     `json:"departure_city"`
	ArrivalCity       string     `json:"arrival_city"`
	DepartureDatetime time.Time  `json:"departure_datetime"`
	PricePerSeat      float64    `json:"price_per_seat"`
	TotalSeats        int        `json:"total_seats"`
	AvailableSeats    int        `json:"available_seats"`
	Status            RideStatus `json:"status"`
	Description       string     `json:"description"`
	DepartureAddress  string     `json:"departure_address"`
	PetsAllowed       bool       `json:"pets_allowed"`
	SmokingAllowed    bool       `json:"smoking_allowed"`
	CreatedAt         time.Time  `json:"created_at"`

	DriverName   string  `json:"driver_name"`
	DriverAvatar string  `json:"driver_avatar"`
	DriverRating float64 `json:"driver_rating"`

	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Color        string `json:"color"`
	FuelType     string `json:"fuel_type"`
	IsEcological bool   `json:"is_ecological"`
}

// IsBookable reports whether passengers may still reserve seats at now.
func (r *Ride) IsBookable(now time.Time) bool {
	return r.Status == StatusOpen && r.AvailableSeats > 0 && r.DepartureDatetime.After(now)
}

// SeatCost is the credit amount charged for seats on this ride.
func SeatCost(pricePerSeat float64, seats int) int {
	return int(math.Ceil(pricePerSeat * float64(seats)))
}

// Sort keys accepted by the listing endpoints.
const (
	SortDatetime   = "datetime"
	SortPrice      = "price"
	SortRating     = "rating"
	SortEcological = "ecological"
)

// Pagination bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
	// MaxPage keeps (page-1)*MaxPageSize within int.
	MaxPage = math.MaxInt / MaxPageSize
)

// RideFilter holds the optional listing predicates.
type RideFilter struct {
	EcoOnly     bool     `json:"eco_only"`
	MaxPrice    *float64 `json:"max_price,omitempty"`
	PetsAllowed bool     `json:"pets_allowed"`
	NonSmoking  bool     `json:"non_smoking"`
}

// RideSearch holds the free-text/date search parameters.
type RideSearch struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
}

// RideListInput is the listing request as parsed from the query string,
// before pagination bounds are applied.
type RideListInput struct {
	Page   int
	Limit  int
	Filter RideFilter
	SortBy string
}

// NormalizeSort returns sortBy when it is a known key and SortDatetime otherwise.
func NormalizeSort(sortBy string) string {
	switch sortBy {
	case SortDatetime, SortPrice, SortRating, SortEcological:
		return sortBy
	default:
		return SortDatetime
	}
}

// EffectiveSort is the ordering actually applied for sortBy. Rides carry no
// rating data yet, so rating ordering degrades to departure time.
func EffectiveSort(sortBy string) string {
	if s := NormalizeSort(sortBy); s != SortRating {
		return s
	}
	return SortDatetime
}

// RideQuery is the fully resolved input of a listing or search call.
type RideQuery struct {
	Page   int
	Limit  int
	Filter RideFilter
	Sort   string
	From   string
	To     string
	// Day, when set, restricts departures to [Day, Day+24h).
	Day *time.Time
	// Now is the reference instant for "upcoming" rides.
	Now time.Time
}

// Offset is the number of rows skipped before the requested page. It
// saturates at math.MaxInt instead of overflowing.
func (q RideQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Pagination is the page metadata block of listing responses.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PerPage     int  `json:"per_page"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPagination computes page metadata for total matching rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage: page,
		PerPage:     limit,
		TotalItems:  total,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}
}

// RidePage is the result of a listing or search call.
type RidePage struct {
	Rides       []Ride      `json:"rides"`
	Pagination  Pagination  `json:"pagination"`
	Filters     RideFilter  `json:"filters"`
	SortBy      string      `json:"sort_by"`
	SortApplied string      `json:"sort_applied"`
	Search      *RideSearch `json:"search,omitempty"`
}

// CreateRideRequest is the payload for POST /api/rides/create.
type CreateRideRequest struct {
	From         string   `json:"from" validate:"required"`
	To           string   `json:"to" validate:"required"`
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string   `json:"time" validate:"required,datetime=15:04"`
	Seats        int      `json:"seats" validate:"required,min=1,max=6"`
	Price        float64  `json:"price" validate:"required,gte=1,lte=200"`
	VehicleType  string   `json:"vehicleType" validate:"required,oneof=electric hybrid gasoline"`
	VehicleBrand string   `json:"vehicleBrand"`
	VehicleModel string   `json:"vehicleModel"`
	Preferences  []string `json:"preferences"`
	Description  string   `json:"description"`
	MeetingPoint string   `json:"meetingPoint"`
}

// NewRide carries the resolved columns of a ride insert.
type NewRide struct {
	DriverID          int64
	DepartureCity     string
	ArrivalCity       string
	DepartureDatetime time.Time
	PricePerSeat      float64
	Seats             int
	Description       string
	DepartureAddress  string
	PetsAllowed       bool
	SmokingAllowed    bool
	Vehicle           VehicleSpec
}

// VehicleSpec describes the vehicle to reuse or create for a new ride.
type VehicleSpec struct {
	FuelType string
	Brand    string
	Model    string
}

// Booking is a passenger's reservation on a ride.
type Booking struct {
	ID           int64     `json:"id"`
	Reference    string    `json:"reference"`
	RideID       int64     `json:"ride_id"`
	PassengerID  int64     `json:"passenger_id"`
	Seats        int       `json:"seats"`
	CreditsSpent int       `json:"credits_spent"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	DepartureCity     string    `json:"departure_city,omitempty"`
	ArrivalCity       string    `json:"arrival_city,omitempty"`
	DepartureDatetime time.Time `json:"departure_datetime,omitzero"`
	DriverName        string    `json:"driver_name,omitempty"`
}

// BookRequest is the payload for POST /api/rides/{id}/book.
type BookRequest struct {
	Seats int `json:"seats"`
}
