package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"family-taxi/internal/models"
)

func TestTripService_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.onlineDriver(t, "bob", 21.031, 105.851)

	trip := env.createTrip(t, passenger)
	if trip.Status != models.TripStatusRequested || trip.DriverID != nil {
		t.Fatalf("new trip = %+v", trip)
	}
	if trip.TotalFare != 12.5 {
		t.Fatalf("total_fare = %v, want 12.5", trip.TotalFare)
	}

	offered, err := env.trips.NextRequest(ctx, driver)
	if err != nil {
		t.Fatalf("NextRequest: %v", err)
	}
	if offered == nil || offered.ID != trip.ID {
		t.Fatalf("driver was not offered trip %d: %+v", trip.ID, offered)
	}

	if _, err := env.trips.Accept(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := env.trips.Arrive(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Arrive: %v", err)
	}
	if _, err := env.trips.Start(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done, err := env.trips.Complete(ctx, driver, trip.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.TripStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("completed trip = %+v", done)
	}

	d, _ := env.userRepo.GetByID(ctx, driver.UserID)
	if d.TripCount != 1 {
		t.Errorf("trip_count = %d, want 1", d.TripCount)
	}

	rated, err := env.trips.RateDriver(ctx, passenger, trip.ID, 5, "great")
	if err != nil {
		t.Fatalf("RateDriver: %v", err)
	}
	if rated.DriverRating == nil || *rated.DriverRating != 5 || rated.DriverReview != "great" {
		t.Errorf("rated trip = %+v", rated)
	}
	d, _ = env.userRepo.GetByID(ctx, driver.UserID)
	if d.Rating != 5 {
		t.Errorf("driver rating = %v, want 5", d.Rating)
	}

	want := []string{"accepted", "arrived", "in_progress", "completed", "rated"}
	got := env.notifier.events()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTripService_ConcurrentAccept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	trip := env.createTrip(t, passenger)

	const drivers = 8
	principals := make([]models.Principal, drivers)
	for i := range principals {
		principals[i] = env.principal(t, "driver"+string(rune('a'+i)), models.RoleDriver)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	start := make(chan struct{})
	for _, p := range principals {
		wg.Add(1)
		go func(p models.Principal) {
			defer wg.Done()
			<-start
			_, err := env.trips.Accept(ctx, p, trip.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrPreconditionFailed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	if successes != 1 || rejected != drivers-1 {
		t.Fatalf("successes=%d rejected=%d, want 1/%d", successes, rejected, drivers-1)
	}
	got, _ := env.tripRepo.GetByID(ctx, trip.ID)
	if got.Status != models.TripStatusAccepted || got.DriverID == nil {
		t.Errorf("trip = %+v", got)
	}
}

func TestTripService_AcceptRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	first := env.principal(t, "bob", models.RoleDriver)
	second := env.principal(t, "carl", models.RoleDriver)
	trip := env.createTrip(t, passenger)
	other := env.createTrip(t, passenger)

	if _, err := env.trips.Accept(ctx, passenger, trip.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("passenger accept: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.trips.Accept(ctx, first, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing trip: expected ErrNotFound, got %v", err)
	}
	if _, err := env.trips.Accept(ctx, first, trip.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := env.trips.Accept(ctx, second, trip.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("second driver: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := env.trips.Accept(ctx, first, other.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("busy driver: expected ErrPreconditionFailed, got %v", err)
	}

	got, _ := env.tripRepo.GetByID(ctx, trip.ID)
	if !got.AssignedTo(first.UserID) {
		t.Errorf("trip driver = %v, want %d", got.DriverID, first.UserID)
	}
	untouched, _ := env.tripRepo.GetByID(ctx, other.ID)
	if untouched.Status != models.TripStatusRequested || untouched.DriverID != nil {
		t.Errorf("other trip changed: %+v", untouched)
	}
}

func TestTripService_DriverTransitionsRequireAssignment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)
	stranger := env.principal(t, "carl", models.RoleDriver)
	trip := env.createTrip(t, passenger)

	if _, err := env.trips.Start(ctx, driver, trip.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("start unassigned: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.trips.Accept(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := env.trips.Start(ctx, stranger, trip.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("stranger start: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.trips.Complete(ctx, driver, trip.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("complete before start: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := env.trips.Start(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := env.trips.Arrive(ctx, driver, trip.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("arrive after start: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := env.trips.RatePassenger(ctx, driver, trip.ID, 5, ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("rate before completion: expected ErrPreconditionFailed, got %v", err)
	}
}

func TestTripService_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	intruder := env.principal(t, "eve", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)

	trip := env.createTrip(t, passenger)
	if _, err := env.trips.Cancel(ctx, intruder, trip.ID, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("foreign cancel: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := env.trips.Accept(ctx, driver, trip.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	cancelled, err := env.trips.Cancel(ctx, passenger, trip.ID, "долго ждать")
	if err != nil {
		t.Fatalf("Cancel accepted trip: %v", err)
	}
	if cancelled.Status != models.TripStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("cancelled = %+v", cancelled)
	}
	if _, err := env.trips.Cancel(ctx, passenger, trip.ID, ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("double cancel: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := env.trips.Reaffirm(ctx, passenger, trip.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("reaffirm cancelled: expected ErrPreconditionFailed, got %v", err)
	}

	// водитель освободился и может принять новую поездку
	next := env.createTrip(t, passenger)
	if _, err := env.trips.Accept(ctx, driver, next.ID); err != nil {
		t.Errorf("driver still busy after cancel: %v", err)
	}

	started := env.createTrip(t, passenger)
	other := env.principal(t, "dan", models.RoleDriver)
	_, _ = env.trips.Accept(ctx, other, started.ID)
	_, _ = env.trips.Start(ctx, other, started.ID)
	if _, err := env.trips.Cancel(ctx, passenger, started.ID, ""); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("cancel in_progress: expected ErrPreconditionFailed, got %v", err)
	}
}

func TestTripService_RatingOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)
	trip := env.createTrip(t, passenger)
	for _, step := range []func() (*models.Trip, error){
		func() (*models.Trip, error) { return env.trips.Accept(ctx, driver, trip.ID) },
		func() (*models.Trip, error) { return env.trips.Start(ctx, driver, trip.ID) },
		func() (*models.Trip, error) { return env.trips.Complete(ctx, driver, trip.ID) },
	} {
		if _, err := step(); err != nil {
			t.Fatalf("lifecycle: %v", err)
		}
	}

	if _, err := env.trips.RateDriver(ctx, passenger, trip.ID, 0, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("rating 0: expected ErrValidation, got %v", err)
	}
	if _, err := env.trips.RateDriver(ctx, passenger, trip.ID, 4, "ok"); err != nil {
		t.Fatalf("RateDriver: %v", err)
	}
	if _, err := env.trips.RateDriver(ctx, passenger, trip.ID, 1, "bad"); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("second rating: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := env.trips.RatePassenger(ctx, driver, trip.ID, 2, ""); err != nil {
		t.Fatalf("RatePassenger: %v", err)
	}

	got, _ := env.tripRepo.GetByID(ctx, trip.ID)
	if *got.DriverRating != 4 || got.DriverReview != "ok" || *got.PassengerRating != 2 {
		t.Errorf("ratings = %+v", got)
	}
	p, _ := env.userRepo.GetByID(ctx, passenger.UserID)
	if p.Rating != 2 {
		t.Errorf("passenger rating = %v, want 2", p.Rating)
	}
}

func TestTripService_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.principal(t, "alice", models.RolePassenger)
	otherPassenger := env.principal(t, "eve", models.RolePassenger)
	assigned := env.principal(t, "bob", models.RoleDriver)
	otherDriver := env.principal(t, "carl", models.RoleDriver)
	admin := env.principal(t, "root", models.RoleAdmin)
	trip := env.createTrip(t, owner)

	if _, err := env.trips.Get(ctx, otherDriver, trip.ID); err != nil {
		t.Errorf("driver should see unassigned trip: %v", err)
	}
	if _, err := env.trips.Accept(ctx, assigned, trip.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	cases := []struct {
		name string
		p    models.Principal
		want error
	}{
		{"owner", owner, nil},
		{"assigned driver", assigned, nil},
		{"admin", admin, nil},
		{"other passenger", otherPassenger, ErrNotAuthorized},
		{"other driver", otherDriver, ErrNotAuthorized},
		{"anonymous", models.Principal{}, ErrNotAuthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.trips.Get(ctx, tc.p, trip.ID)
			if tc.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := env.trips.Get(ctx, owner, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing trip: expected ErrNotFound, got %v", err)
	}
}

func TestTripService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)

	in := hanoiTrip()
	in.Distance = nil
	trip, err := env.trips.Create(ctx, passenger, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if math.Abs(trip.Distance-5.6456) > 0.001 {
		t.Errorf("haversine distance = %v", trip.Distance)
	}
	if trip.BaseFare != 5 || trip.PerKmRate != 1.5 {
		t.Errorf("default fares = %v/%v", trip.BaseFare, trip.PerKmRate)
	}

	wrong := hanoiTrip()
	total := 20.0
	wrong.TotalFare = &total
	if _, err := env.trips.Create(ctx, passenger, wrong); !errors.Is(err, ErrValidation) {
		t.Errorf("fare mismatch: expected ErrValidation, got %v", err)
	}

	exact := hanoiTrip()
	withinTolerance := 12.505
	exact.TotalFare = &withinTolerance
	if _, err := env.trips.Create(ctx, passenger, exact); err != nil {
		t.Errorf("fare within tolerance rejected: %v", err)
	}

	bad := hanoiTrip()
	bad.PickupLatitude = 123
	if _, err := env.trips.Create(ctx, passenger, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("bad latitude: expected ErrValidation, got %v", err)
	}

	if _, err := env.trips.Create(ctx, driver, hanoiTrip()); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("driver create: expected ErrNotAuthorized, got %v", err)
	}
}

func TestTripService_NextRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.onlineDriver(t, "bob", 21.031, 105.851)
	near := env.createTrip(t, passenger)

	far := hanoiTrip()
	far.PickupLatitude, far.PickupLongitude = 21.2, 105.85
	if _, err := env.trips.Create(ctx, passenger, far); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := env.trips.NextRequest(ctx, driver)
	if err != nil || got == nil || got.ID != near.ID {
		t.Fatalf("NextRequest = %+v, %v; want trip %d", got, err, near.ID)
	}

	if err := env.trips.Decline(ctx, driver, near.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	declined, _ := env.tripRepo.GetByID(ctx, near.ID)
	if declined.Status != models.TripStatusRequested || declined.DriverID != nil {
		t.Errorf("decline changed the trip: %+v", declined)
	}
	if got, _ := env.trips.NextRequest(ctx, driver); got != nil {
		t.Errorf("declined trip offered again: %d", got.ID)
	}

	// другой водитель рядом всё ещё видит поездку
	other := env.onlineDriver(t, "carl", 21.03, 105.85)
	if got, _ := env.trips.NextRequest(ctx, other); got == nil || got.ID != near.ID {
		t.Errorf("other driver offered %+v", got)
	}

	if _, err := env.trips.Accept(ctx, other, near.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	fresh := env.createTrip(t, passenger)
	if got, _ := env.trips.NextRequest(ctx, other); got != nil {
		t.Errorf("busy driver offered trip %d", got.ID)
	}
	if got, _ := env.trips.NextRequest(ctx, driver); got == nil || got.ID != fresh.ID {
		t.Errorf("free driver offered %+v, want %d", got, fresh.ID)
	}

	if _, err := env.users.SetOnline(ctx, driver, false); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if got, _ := env.trips.NextRequest(ctx, driver); got != nil {
		t.Errorf("offline driver offered trip %d", got.ID)
	}

	noCoords := env.principal(t, "dan", models.RoleDriver)
	_, _ = env.users.SetOnline(ctx, noCoords, true)
	if got, _ := env.trips.NextRequest(ctx, noCoords); got != nil {
		t.Errorf("driver without coordinates offered trip %d", got.ID)
	}

	if _, err := env.trips.NextRequest(ctx, passenger); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("passenger poll: expected ErrNotAuthorized, got %v", err)
	}
}

func TestTripService_DeclineRequiresRequested(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)
	other := env.principal(t, "carl", models.RoleDriver)
	trip := env.createTrip(t, passenger)
	_, _ = env.trips.Accept(ctx, driver, trip.ID)

	if err := env.trips.Decline(ctx, other, trip.ID); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
	if err := env.trips.Decline(ctx, other, 777); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type fixedRoute struct {
	km  float64
	err error
}

func (f fixedRoute) RouteDistanceKm(context.Context, float64, float64, float64, float64) (float64, error) {
	return f.km, f.err
}

func TestTripService_Estimate(t *testing.T) {
	in := EstimateInput{PickupLatitude: 21.03, PickupLongitude: 105.85, DestinationLatitude: 21.05, DestinationLongitude: 105.90}

	env := newTestEnv(t, WithRouteEstimator(fixedRoute{km: 8}))
	p := env.principal(t, "alice", models.RolePassenger)
	est, err := env.trips.Estimate(context.Background(), p, in)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Source != "route" || est.Distance != 8 || est.TotalFare != 17 || est.EstimatedMinutes != 16 {
		t.Errorf("estimate = %+v", est)
	}

	env = newTestEnv(t, WithRouteEstimator(fixedRoute{err: errors.New("timeout")}))
	p = env.principal(t, "alice", models.RolePassenger)
	est, err = env.trips.Estimate(context.Background(), p, in)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Source != "haversine" || math.Abs(est.Distance-5.6456) > 0.001 {
		t.Errorf("fallback estimate = %+v", est)
	}
}

func TestTripService_DriverStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	driver := env.principal(t, "bob", models.RoleDriver)

	for i := 0; i < 2; i++ {
		trip := env.createTrip(t, passenger)
		_, _ = env.trips.Accept(ctx, driver, trip.ID)
		_, _ = env.trips.Start(ctx, driver, trip.ID)
		if _, err := env.trips.Complete(ctx, driver, trip.ID); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}

	stats, err := env.trips.DriverStats(ctx, driver)
	if err != nil {
		t.Fatalf("DriverStats: %v", err)
	}
	if stats.TripCount != 2 || stats.TodayTrips != 2 || stats.TodayEarnings != 25 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestTripService_Recent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	passenger := env.principal(t, "alice", models.RolePassenger)
	other := env.principal(t, "eve", models.RolePassenger)

	for i := 0; i < 12; i++ {
		env.createTrip(t, passenger)
	}
	env.createTrip(t, other)

	trips, err := env.trips.Recent(ctx, passenger)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(trips) != 10 {
		t.Fatalf("got %d trips, want 10", len(trips))
	}
	for _, tr := range trips {
		if tr.PassengerID != passenger.UserID {
			t.Errorf("foreign trip %d in recent list", tr.ID)
		}
	}
	if trips[0].ID < trips[len(trips)-1].ID {
		t.Errorf("recent trips not newest first: %d .. %d", trips[0].ID, trips[len(trips)-1].ID)
	}
}

func TestRouteChain_FallsBackInOrder(t *testing.T) {
	chain := RouteChain{fixedRoute{err: errors.New("2gis down")}, fixedRoute{km: 7.5}, fixedRoute{km: 99}}
	km, err := chain.RouteDistanceKm(context.Background(), 0, 0, 1, 1)
	if err != nil || km != 7.5 {
		t.Fatalf("RouteDistanceKm = %v, %v; want 7.5", km, err)
	}

	if _, err := (RouteChain{fixedRoute{err: errors.New("a")}}).RouteDistanceKm(context.Background(), 0, 0, 1, 1); err == nil {
		t.Error("expected error when every provider fails")
	}
	if _, err := (RouteChain{}).RouteDistanceKm(context.Background(), 0, 0, 1, 1); err == nil {
		t.Error("expected error for empty chain")
	}
}

func TestMultiNotifier_FansOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	m := MultiNotifier{a, b}
	m.NotifyTripStatus([]uint{1, 2}, models.TripStatusUpdate{TripID: 3, Event: "accepted"})
	m.NotifyDriverLocation(1, 3, 21.03, 105.85)

	for _, n := range []*recordingNotifier{a, b} {
		if got := n.events(); len(got) != 1 || got[0] != "accepted" {
			t.Errorf("events = %v", got)
		}
		if len(n.locations) != 1 || n.locations[0] != 1 {
			t.Errorf("locations = %v", n.locations)
		}
	}
}
