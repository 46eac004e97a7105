package repository

import (
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/ecoride/carpool/internal/model"
)

var dialect = goqu.Dialect("postgres")

var rideSelect = []any{
	goqu.I("r.id"),
	goqu.I("r.driver_id"),
	goqu.I("r.vehicle_id"),
	goqu.I("r.departure_city"),
	goqu.I("r.arrival_city"),
	goqu.I("r.departure_datetime"),
	goqu.I("r.price_per_seat"),
	goqu.I("r.total_seats"),
	goqu.I("r.available_seats"),
	goqu.I("r.status_id"),
	goqu.I("r.description"),
	goqu.I("r.departure_address"),
	goqu.I("r.pets_allowed"),
	goqu.I("r.smoking_allowed"),
	goqu.I("r.created_at"),
	goqu.I("u.pseudo").As("driver_name"),
	goqu.I("u.profile_picture").As("driver_avatar"),
	goqu.I("u.rating_average").As("driver_rating"),
	goqu.I("v.brand"),
	goqu.I("v.model"),
	goqu.I("v.color"),
	goqu.I("v.fuel_type"),
	goqu.I("v.is_ecological"),
}

// rideFrom joins a ride with its driver and vehicle.
func rideFrom() *goqu.SelectDataset {
	return dialect.From(goqu.T("rides").As("r")).
		InnerJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.driver_id")))).
		InnerJoin(goqu.T("vehicles").As("v"), goqu.On(goqu.I("v.id").Eq(goqu.I("r.vehicle_id"))))
}

// ridePredicates returns the AND-ed conditions shared by the page query and
// its COUNT companion.
func ridePredicates(q model.RideQuery) []exp.Expression {
	statuses := make([]any, 0, len(model.ActiveStatuses))
	for _, s := range model.ActiveStatuses {
		statuses = append(statuses, int(s))
	}

	preds := []exp.Expression{
		goqu.I("r.departure_datetime").Gt(q.Now),
		goqu.I("r.status_id").In(statuses...),
	}

	if q.Filter.EcoOnly {
		preds = append(preds, goqu.Or(
			goqu.I("v.is_ecological").IsTrue(),
			goqu.I("v.fuel_type").Eq(model.FuelElectric),
		))
	}
	if q.Filter.MaxPrice != nil {
		preds = append(preds, goqu.I("r.price_per_seat").Lte(*q.Filter.MaxPrice))
	}
	if q.Filter.PetsAllowed {
		preds = append(preds, goqu.I("r.pets_allowed").IsTrue())
	}
	if q.Filter.NonSmoking {
		preds = append(preds, goqu.I("r.smoking_allowed").IsFalse())
	}

	if q.From != "" {
		preds = append(preds, goqu.I("r.departure_city").ILike(containsPattern(q.From)))
	}
	if q.To != "" {
		preds = append(preds, goqu.I("r.arrival_city").ILike(containsPattern(q.To)))
	}
	if q.Day != nil {
		preds = append(preds,
			goqu.I("r.departure_datetime").Gte(*q.Day),
			goqu.I("r.departure_datetime").Lt(q.Day.Add(24*time.Hour)),
		)
	}
	return preds
}

// rideOrder maps a sort key onto ORDER BY terms. The second result is the
// key actually applied.
func rideOrder(sortBy string) ([]exp.OrderedExpression, string) {
	byDeparture := goqu.I("r.departure_datetime").Asc()
	byID := goqu.I("r.id").Asc()

	applied := model.EffectiveSort(sortBy)
	switch applied {
	case model.SortPrice:
		return []exp.OrderedExpression{goqu.I("r.price_per_seat").Asc(), byDeparture, byID}, applied
	case model.SortEcological:
		return []exp.OrderedExpression{goqu.I("v.is_ecological").Desc(), byDeparture, byID}, applied
	default:
		return []exp.OrderedExpression{byDeparture, byID}, applied
	}
}

// buildRidePageQuery renders the page query for q.
func buildRidePageQuery(q model.RideQuery) (string, []any, error) {
	order, _ := rideOrder(q.Sort)
	return rideFrom().
		Select(rideSelect...).
		Where(ridePredicates(q)...).
		Order(order...).
		Limit(uint(q.Limit)).
		Offset(uint(q.Offset())).
		Prepared(true).
		ToSQL()
}

// buildRideCountQuery renders the COUNT(*) companion of the page query.
func buildRideCountQuery(q model.RideQuery) (string, []any, error) {
	return rideFrom().
		Select(goqu.COUNT(goqu.Star())).
		Where(ridePredicates(q)...).
		Prepared(true).
		ToSQL()
}

// buildRideByIDQuery renders the detail query of one ride.
func buildRideByIDQuery(id int64) (string, []any, error) {
	return rideFrom().
		Select(rideSelect...).
		Where(goqu.I("r.id").Eq(id)).
		Prepared(true).
		ToSQL()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns user text into an ILIKE substring pattern with the
// wildcard characters escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(s)) + "%"
}
