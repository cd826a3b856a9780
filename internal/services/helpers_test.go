package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"family-taxi/internal/config"
	"family-taxi/internal/db/dbtest"
	"family-taxi/internal/models"
	"family-taxi/internal/repository"
	"family-taxi/internal/utils"

	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu        sync.Mutex
	updates   []models.TripStatusUpdate
	to        [][]uint
	locations []uint
}

func (n *recordingNotifier) NotifyTripStatus(userIDs []uint, u models.TripStatusUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	n.to = append(n.to, userIDs)
}

func (n *recordingNotifier) NotifyDriverLocation(passengerID, tripID uint, lat, lng float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.locations = append(n.locations, passengerID)
}

func (n *recordingNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.updates))
	for i, u := range n.updates {
		out[i] = u.Event
	}
	return out
}

// memoryDeclines - отказы в памяти без TTL
type memoryDeclines struct {
	mu   sync.Mutex
	seen map[[2]uint]bool
}

func (m *memoryDeclines) Remember(_ context.Context, driverID, tripID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[[2]uint]bool)
	}
	m.seen[[2]uint{driverID, tripID}] = true
	return nil
}

func (m *memoryDeclines) Declined(_ context.Context, driverID uint, tripIDs []uint) (map[uint]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint]bool)
	for _, id := range tripIDs {
		if m.seen[[2]uint{driverID, id}] {
			out[id] = true
		}
	}
	return out, nil
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *memoryRevoker) Revoke(_ context.Context, jti string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked == nil {
		r.revoked = make(map[string]bool)
	}
	r.revoked[jti] = true
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[jti], nil
}

type testEnv struct {
	trips     *TripService
	users     *UserService
	locations *LocationService
	tripRepo  *repository.TripRepository
	userRepo  *repository.UserRepository
	notifier  *recordingNotifier
	declines  *memoryDeclines
	revoker   *memoryRevoker
	jwt       *utils.JWTManager
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...TripOption) *testEnv {
	t.Helper()
	gdb := dbtest.Open(t)
	env := &testEnv{
		tripRepo: repository.NewTripRepository(gdb),
		userRepo: repository.NewUserRepository(gdb),
		notifier: &recordingNotifier{},
		declines: &memoryDeclines{},
		revoker:  &memoryRevoker{},
		jwt:      utils.NewJWTManager("test-secret", time.Hour),
	}
	log := discardLogger()
	opts = append([]TripOption{WithNotifier(env.notifier), WithDeclineStore(env.declines)}, opts...)
	env.trips = NewTripService(env.tripRepo, env.userRepo, config.DefaultTripConfig(), log, opts...)
	env.users = NewUserService(env.userRepo, env.tripRepo, env.jwt, env.revoker, env.notifier, log)
	env.users.cost = bcrypt.MinCost
	env.locations = NewLocationService(repository.NewLocationRepository(gdb), log)
	return env
}

// principal создаёт пользователя с ролью напрямую в репозитории
func (e *testEnv) principal(t *testing.T, username string, role models.Role) models.Principal {
	t.Helper()
	u := &models.User{Username: username, PasswordHash: "x", Role: role}
	if err := e.userRepo.Create(context.Background(), u); err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return models.Principal{UserID: u.ID, Role: role}
}

// onlineDriver - водитель на линии с координатами
func (e *testEnv) onlineDriver(t *testing.T, username string, lat, lng float64) models.Principal {
	t.Helper()
	p := e.principal(t, username, models.RoleDriver)
	ctx := context.Background()
	if _, err := e.users.SetOnline(ctx, p, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if _, err := e.users.UpdateLocation(ctx, p, lat, lng); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	return p
}

func hanoiTrip() CreateTripInput {
	distance := 5.0
	return CreateTripInput{
		PickupAddress:        "Hoan Kiem",
		PickupLatitude:       21.03,
		PickupLongitude:      105.85,
		DestinationAddress:   "Tay Ho",
		DestinationLatitude:  21.05,
		DestinationLongitude: 105.90,
		Distance:             &distance,
	}
}

func (e *testEnv) createTrip(t *testing.T, p models.Principal) *models.Trip {
	t.Helper()
	trip, err := e.trips.Create(context.Background(), p, hanoiTrip())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return trip
}
