package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"family-taxi/internal/config"
	"family-taxi/internal/models"
	"family-taxi/internal/observability"
	"family-taxi/internal/repository"
	"family-taxi/internal/services/geo"
)

const (
	recentTripsLimit = 10
	fareTolerance    = 0.01
)

// TripService управляет жизненным циклом поездки. Каждый переход проверяет роль
// и участника, а затем выполняется условным обновлением в репозитории.
type TripService struct {
	trips    *repository.TripRepository
	users    *repository.UserRepository
	cfg      config.TripConfig
	log      *slog.Logger
	declines DeclineStore
	notifier Notifier
	routes   RouteEstimator
	now      func() time.Time
}

type TripOption func(*TripService)

func WithDeclineStore(s DeclineStore) TripOption {
	return func(ts *TripService) {
		if s != nil {
			ts.declines = s
		}
	}
}

func WithNotifier(n Notifier) TripOption {
	return func(ts *TripService) {
		if n != nil {
			ts.notifier = n
		}
	}
}

func WithRouteEstimator(r RouteEstimator) TripOption {
	return func(ts *TripService) { ts.routes = r }
}

func WithClock(now func() time.Time) TripOption {
	return func(ts *TripService) { ts.now = now }
}

func NewTripService(trips *repository.TripRepository, users *repository.UserRepository, cfg config.TripConfig, log *slog.Logger, opts ...TripOption) *TripService {
	s := &TripService{
		trips:    trips,
		users:    users,
		cfg:      cfg,
		log:      log,
		declines: nopDeclineStore{},
		notifier: nopNotifier{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateTripInput struct {
	PickupAddress        string
	PickupLatitude       float64
	PickupLongitude      float64
	DestinationAddress   string
	DestinationLatitude  float64
	DestinationLongitude float64

	Distance  *float64
	BaseFare  *float64
	PerKmRate *float64
	TotalFare *float64
}

// Create создаёт заявку пассажира. Стоимость всегда считается на сервере;
// присланная клиентом total_fare должна с ней совпадать.
func (s *TripService) Create(ctx context.Context, p models.Principal, in CreateTripInput) (*models.Trip, error) {
	if err := requireRole(p, models.RolePassenger); err != nil {
		return nil, err
	}
	if in.PickupAddress == "" || in.DestinationAddress == "" {
		return nil, fmt.Errorf("%w: адреса подачи и назначения обязательны", ErrValidation)
	}
	if err := validateCoordinates(in.PickupLatitude, in.PickupLongitude); err != nil {
		return nil, err
	}
	if err := validateCoordinates(in.DestinationLatitude, in.DestinationLongitude); err != nil {
		return nil, err
	}

	distance := geo.DistanceKm(in.PickupLatitude, in.PickupLongitude, in.DestinationLatitude, in.DestinationLongitude)
	if in.Distance != nil {
		distance = *in.Distance
	}
	baseFare := valueOr(in.BaseFare, s.cfg.BaseFare)
	perKm := valueOr(in.PerKmRate, s.cfg.PerKmRate)
	if distance < 0 || baseFare < 0 || perKm < 0 {
		return nil, fmt.Errorf("%w: расстояние и тарифы не могут быть отрицательными", ErrValidation)
	}

	total := geo.Fare(distance, baseFare, perKm)
	if in.TotalFare != nil && math.Abs(*in.TotalFare-total) > fareTolerance {
		return nil, fmt.Errorf("%w: total_fare %.2f не совпадает с расчётной стоимостью %.2f", ErrValidation, *in.TotalFare, total)
	}

	trip := &models.Trip{
		PassengerID:          p.UserID,
		PickupAddress:        in.PickupAddress,
		PickupLatitude:       in.PickupLatitude,
		PickupLongitude:      in.PickupLongitude,
		DestinationAddress:   in.DestinationAddress,
		DestinationLatitude:  in.DestinationLatitude,
		DestinationLongitude: in.DestinationLongitude,
		Distance:             distance,
		BaseFare:             baseFare,
		PerKmRate:            perKm,
		TotalFare:            total,
		RequestedAt:          s.now(),
	}
	err := s.trips.Create(ctx, trip)
	observability.TrackTransition("create", err)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания поездки: %w", err)
	}
	s.log.Info("поездка создана", "trip_id", trip.ID, "passenger_id", p.UserID, "distance_km", distance, "total_fare", total)
	return trip, nil
}

type EstimateInput struct {
	PickupLatitude       float64
	PickupLongitude      float64
	DestinationLatitude  float64
	DestinationLongitude float64
}

// Estimate - предварительный расчёт расстояния, времени и стоимости. Если провайдер
// маршрутов недоступен, используется расстояние по прямой.
func (s *TripService) Estimate(ctx context.Context, p models.Principal, in EstimateInput) (*models.TripEstimate, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	if err := validateCoordinates(in.PickupLatitude, in.PickupLongitude); err != nil {
		return nil, err
	}
	if err := validateCoordinates(in.DestinationLatitude, in.DestinationLongitude); err != nil {
		return nil, err
	}

	source := "haversine"
	distance := geo.DistanceKm(in.PickupLatitude, in.PickupLongitude, in.DestinationLatitude, in.DestinationLongitude)
	if s.routes != nil {
		routed, err := s.routes.RouteDistanceKm(ctx, in.PickupLatitude, in.PickupLongitude, in.DestinationLatitude, in.DestinationLongitude)
		if err != nil {
			s.log.Warn("провайдер маршрутов недоступен, считаем по прямой", "error", err)
		} else {
			distance, source = routed, "route"
		}
	}

	return &models.TripEstimate{
		Distance:         distance,
		EstimatedMinutes: geo.EstimateMinutes(distance, s.cfg.AvgSpeedKmh),
		BaseFare:         s.cfg.BaseFare,
		PerKmRate:        s.cfg.PerKmRate,
		TotalFare:        geo.Fare(distance, s.cfg.BaseFare, s.cfg.PerKmRate),
		Source:           source,
	}, nil
}

// Get возвращает поездку с учётом видимости: пассажир видит свои поездки,
// водитель - назначенные ему и свободные, администратор - все.
func (s *TripService) Get(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	trip, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p.Role {
	case models.RoleAdmin:
		return trip, nil
	case models.RolePassenger:
		if trip.PassengerID == p.UserID {
			return trip, nil
		}
	case models.RoleDriver:
		if trip.DriverID == nil || *trip.DriverID == p.UserID {
			return trip, nil
		}
	}
	return nil, fmt.Errorf("%w: нет доступа к поездке %d", ErrNotAuthorized, id)
}

func (s *TripService) Recent(ctx context.Context, p models.Principal) ([]models.Trip, error) {
	if err := requireRole(p, models.RolePassenger); err != nil {
		return nil, err
	}
	trips, err := s.trips.ListRecentByPassenger(ctx, p.UserID, recentTripsLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения поездок: %w", err)
	}
	return trips, nil
}

// Reaffirm - пассажир подтверждает, что всё ещё ждёт машину
func (s *TripService) Reaffirm(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	trip, err := s.passengerTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusRequested {
		return nil, preconditionf("поездка %d не ожидает водителя", id)
	}
	return s.transition(ctx, "request", trip, "", func() error {
		return s.trips.Reaffirm(ctx, id, p.UserID)
	})
}

func (s *TripService) Cancel(ctx context.Context, p models.Principal, id uint, reason string) (*models.Trip, error) {
	trip, err := s.passengerTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusRequested && trip.Status != models.TripStatusAccepted {
		return nil, preconditionf("поездку %d нельзя отменить в статусе %s", id, trip.Status)
	}
	return s.transition(ctx, "cancel", trip, "", func() error {
		return s.trips.Cancel(ctx, id, p.UserID, reason, s.now())
	})
}

// RateDriver - пассажир оценивает водителя после завершения поездки
func (s *TripService) RateDriver(ctx context.Context, p models.Principal, id uint, rating int, review string) (*models.Trip, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	trip, err := s.passengerTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusCompleted {
		return nil, preconditionf("оценить можно только завершённую поездку")
	}
	if trip.DriverRating != nil {
		return nil, preconditionf("водитель уже оценён")
	}
	return s.transition(ctx, "rate_driver", trip, "rated", func() error {
		return s.trips.RateDriver(ctx, id, p.UserID, rating, review)
	})
}

// ActiveForDriver возвращает принятую или начатую поездку водителя, либо nil
func (s *TripService) ActiveForDriver(ctx context.Context, p models.Principal) (*models.Trip, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	trip, err := s.trips.FindActiveByDriver(ctx, p.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активной поездки: %w", err)
	}
	return trip, nil
}

// NextRequest подбирает водителю ближайшую свободную поездку. nil, если водитель
// не на линии, уже занят, не прислал координаты или поблизости ничего нет.
func (s *TripService) NextRequest(ctx context.Context, p models.Principal) (*models.Trip, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	driver, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, fromRepo(err, "пользователь", p.UserID)
	}
	if !driver.IsOnline {
		return s.noMatch("offline")
	}
	if !driver.HasLocation() {
		return s.noMatch("no_location")
	}
	active, err := s.ActiveForDriver(ctx, p)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return s.noMatch("busy")
	}

	pending, err := s.trips.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ожидающих поездок: %w", err)
	}
	pending = s.withoutDeclined(ctx, p.UserID, pending)

	trip, dist := FindNearestTrip(driver.CurrentLatitude, driver.CurrentLongitude, pending, s.cfg.MatchRadiusKm)
	if trip == nil {
		return s.noMatch("out_of_range")
	}
	observability.MatchOutcomesTotal.WithLabelValues("matched").Inc()
	s.log.Debug("найдена поездка для водителя", "driver_id", p.UserID, "trip_id", trip.ID, "distance_km", dist)
	return trip, nil
}

func (s *TripService) noMatch(outcome string) (*models.Trip, error) {
	observability.MatchOutcomesTotal.WithLabelValues(outcome).Inc()
	return nil, nil
}

func (s *TripService) withoutDeclined(ctx context.Context, driverID uint, pending []models.Trip) []models.Trip {
	if len(pending) == 0 {
		return pending
	}
	ids := make([]uint, len(pending))
	for i := range pending {
		ids[i] = pending[i].ID
	}
	declined, err := s.declines.Declined(ctx, driverID, ids)
	if err != nil {
		s.log.Warn("не удалось прочитать отказы водителя", "driver_id", driverID, "error", err)
		return pending
	}
	if len(declined) == 0 {
		return pending
	}
	out := make([]models.Trip, 0, len(pending))
	for _, t := range pending {
		if !declined[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (s *TripService) Accept(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	trip, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusRequested || trip.DriverID != nil {
		observability.TrackTransition("accept", ErrPreconditionFailed)
		return nil, preconditionf("поездка %d уже принята или закрыта", id)
	}
	return s.transition(ctx, "accept", trip, "", func() error {
		return s.trips.Accept(ctx, id, p.UserID, s.now())
	})
}

// Decline ничего не меняет в поездке: отказ запоминается только для этого водителя
func (s *TripService) Decline(ctx context.Context, p models.Principal, id uint) error {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return err
	}
	trip, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if trip.Status != models.TripStatusRequested {
		observability.TrackTransition("decline", ErrPreconditionFailed)
		return preconditionf("поездка %d уже не ожидает водителя", id)
	}
	if err := s.declines.Remember(ctx, p.UserID, id); err != nil {
		s.log.Warn("не удалось запомнить отказ", "driver_id", p.UserID, "trip_id", id, "error", err)
	}
	observability.TrackTransition("decline", nil)
	return nil
}

// Arrive - водитель на месте подачи. Статус не меняется, пассажир получает уведомление.
func (s *TripService) Arrive(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	trip, err := s.driverTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusAccepted {
		return nil, preconditionf("поездка %d не в статусе accepted", id)
	}
	observability.TrackTransition("arrive", nil)
	s.notify(trip, "arrived")
	return trip, nil
}

func (s *TripService) Start(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	trip, err := s.driverTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusAccepted {
		return nil, preconditionf("поездка %d не в статусе accepted", id)
	}
	return s.transition(ctx, "start", trip, "", func() error {
		return s.trips.Start(ctx, id, p.UserID, s.now())
	})
}

func (s *TripService) Complete(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	trip, err := s.driverTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusInProgress {
		return nil, preconditionf("поездка %d не в статусе in_progress", id)
	}
	return s.transition(ctx, "complete", trip, "", func() error {
		return s.trips.Complete(ctx, id, p.UserID, s.now())
	})
}

// RatePassenger - водитель оценивает пассажира после завершения поездки
func (s *TripService) RatePassenger(ctx context.Context, p models.Principal, id uint, rating int, review string) (*models.Trip, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	trip, err := s.driverTrip(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusCompleted {
		return nil, preconditionf("оценить можно только завершённую поездку")
	}
	if trip.PassengerRating != nil {
		return nil, preconditionf("пассажир уже оценён")
	}
	return s.transition(ctx, "rate_passenger", trip, "rated", func() error {
		return s.trips.RatePassenger(ctx, id, p.UserID, rating, review)
	})
}

// DriverStats - счётчик поездок, рейтинг и заработок водителя за текущие сутки (UTC)
func (s *TripService) DriverStats(ctx context.Context, p models.Principal) (*models.DriverStats, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	driver, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, fromRepo(err, "пользователь", p.UserID)
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	totals, err := s.trips.CompletedByDriverSince(ctx, p.UserID, midnight)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта статистики: %w", err)
	}
	return &models.DriverStats{
		TripCount:     driver.TripCount,
		TodayTrips:    totals.Trips,
		TodayEarnings: totals.Earnings,
		Rating:        driver.Rating,
		IsOnline:      driver.IsOnline,
	}, nil
}

// transition выполняет условное обновление, перечитывает поездку и уведомляет участников
func (s *TripService) transition(ctx context.Context, name string, before *models.Trip, event string, apply func() error) (*models.Trip, error) {
	err := apply()
	observability.TrackTransition(name, err)
	if err != nil {
		s.log.Info("переход отклонён", "transition", name, "trip_id", before.ID, "status", before.Status, "error", err)
		return nil, fromRepo(err, "поездка", before.ID)
	}

	after, err := s.load(ctx, before.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("переход выполнен", "transition", name, "trip_id", after.ID, "from", before.Status, "to", after.Status)
	if event == "" {
		event = string(after.Status)
	}
	s.notify(after, event)
	return after, nil
}

func (s *TripService) notify(trip *models.Trip, event string) {
	recipients := []uint{trip.PassengerID}
	if trip.DriverID != nil {
		recipients = append(recipients, *trip.DriverID)
	}
	s.notifier.NotifyTripStatus(recipients, models.TripStatusUpdate{
		TripID:    trip.ID,
		Status:    trip.Status,
		Event:     event,
		DriverID:  trip.DriverID,
		UpdatedAt: s.now(),
	})
}

func (s *TripService) load(ctx context.Context, id uint) (*models.Trip, error) {
	trip, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err, "поездка", id)
	}
	return trip, nil
}

func (s *TripService) passengerTrip(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	if err := requireRole(p, models.RolePassenger); err != nil {
		return nil, err
	}
	trip, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if trip.PassengerID != p.UserID {
		return nil, fmt.Errorf("%w: поездка %d принадлежит другому пассажиру", ErrNotAuthorized, id)
	}
	return trip, nil
}

func (s *TripService) driverTrip(ctx context.Context, p models.Principal, id uint) (*models.Trip, error) {
	if err := requireRole(p, models.RoleDriver); err != nil {
		return nil, err
	}
	trip, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !trip.AssignedTo(p.UserID) {
		return nil, fmt.Errorf("%w: поездка %d назначена другому водителю", ErrNotAuthorized, id)
	}
	return trip, nil
}

func requireAuthenticated(p models.Principal) error {
	if p.UserID == 0 || !p.Role.Valid() {
		return ErrNotAuthenticated
	}
	return nil
}

func requireRole(p models.Principal, role models.Role) error {
	if err := requireAuthenticated(p); err != nil {
		return err
	}
	if p.Role != role {
		return fmt.Errorf("%w: требуется роль %s", ErrNotAuthorized, role)
	}
	return nil
}

func preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: оценка должна быть от 1 до 5", ErrValidation)
	}
	return nil
}

func validateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: координаты вне допустимого диапазона", ErrValidation)
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
