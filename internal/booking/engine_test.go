package booking

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	appdb "github.com/pviana/arenabook/internal/db"
	"github.com/pviana/arenabook/internal/models"
	"github.com/pviana/arenabook/internal/testutil"
)

// fakeClock is a settable Clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Tuesday noon; the Thursday release cutoff of this week is Sep 3 15:00.
var testNow = time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *appdb.DB, *fakeClock) {
	t.Helper()
	database := testutil.NewTestDB(t)
	clock := &fakeClock{now: testNow}
	engine, err := NewEngine(database, WithClock(clock))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, database, clock
}

func createTestArena(t *testing.T, database *appdb.DB, sport models.SportCategory) models.Arena {
	t.Helper()
	arena, err := database.Queries.CreateArena(context.Background(), appdb.CreateArenaParams{
		Name:     "Quadra 1",
		Capacity: 4,
		Sport:    sport,
	})
	if err != nil {
		t.Fatalf("create arena: %v", err)
	}
	return arena
}

func createTestUser(t *testing.T, database *appdb.DB, email string, admin, internal bool) models.User {
	t.Helper()
	user, err := database.Queries.CreateUser(context.Background(), appdb.CreateUserParams{
		Email:    email,
		FullName: "Test User",
		Active:   true,
		Admin:    admin,
		Internal: internal,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestEngineCreate_AdvancesWeeklyMarker(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	user := createTestUser(t, database, "player@example.com", false, true)

	start := time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC)
	created, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     start,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.EndTime.Sub(created.StartTime) != models.ReservationDuration {
		t.Fatalf("reservation window = %s, want 90m", created.EndTime.Sub(created.StartTime))
	}

	stored, err := database.Queries.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.LastWeeklyParticipation == nil || !stored.LastWeeklyParticipation.Equal(start) {
		t.Fatalf("weekly marker = %v, want %s", stored.LastWeeklyParticipation, start)
	}

	// A second booking three days later hits the weekly cooldown.
	_, err = engine.Create(ctx, CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 10, 7, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestEngineCreate_RejectionLeavesNoTrace(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	user := createTestUser(t, database, "player@example.com", false, true)

	// Beyond the 7-day horizon before the Thursday cutoff.
	_, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 11, 7, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrIllegalSchedule) {
		t.Fatalf("expected illegal schedule, got %v", err)
	}

	reservations, err := database.Queries.ListReservationsByArena(ctx, arena.ID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(reservations) != 0 {
		t.Fatalf("rejected create persisted %d reservations", len(reservations))
	}

	stored, err := database.Queries.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.LastWeeklyParticipation != nil {
		t.Fatal("rejected create advanced the weekly marker")
	}
}

func TestEngineCreate_UnknownArena(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	user := createTestUser(t, database, "player@example.com", false, true)

	_, err := engine.Create(context.Background(), CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       999,
		StartTime:     time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrArenaNotFound) {
		t.Fatalf("expected arena not found, got %v", err)
	}
}

func TestEngineCreate_UnknownRequester(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	arena := createTestArena(t, database, models.SportTennis)

	_, err := engine.Create(context.Background(), CreateRequest{
		ResponsibleID: uuid.New(),
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestEngineCreate_OffGridSlot(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	arena := createTestArena(t, database, models.SportTennis)
	user := createTestUser(t, database, "player@example.com", false, true)

	_, err := engine.Create(context.Background(), CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 7, 7, 45, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected invalid schedule, got %v", err)
	}
}

func TestEngineCreate_ConcurrentSameSlot(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	alice := createTestUser(t, database, "alice@example.com", false, true)
	bob := createTestUser(t, database, "bob@example.com", false, true)

	start := time.Date(2026, time.September, 7, 8, 30, 0, 0, time.UTC)
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, responsible := range []uuid.UUID{alice.ID, bob.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := engine.Create(ctx, CreateRequest{
				ResponsibleID: id,
				ArenaID:       arena.ID,
				StartTime:     start,
			})
			errs <- err
		}(responsible)
	}
	wg.Wait()
	close(errs)

	var accepted, taken int
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 || taken != 1 {
		t.Fatalf("accepted=%d taken=%d, want exactly one of each", accepted, taken)
	}

	reservations, err := database.Queries.ListReservationsByArena(ctx, arena.ID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(reservations) != 1 {
		t.Fatalf("persisted %d reservations, want 1", len(reservations))
	}
}

func TestEngineCreate_AdminEvictsSingleConflict(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	player := createTestUser(t, database, "player@example.com", false, true)
	admin := createTestUser(t, database, "admin@example.com", true, true)

	start := time.Date(2026, time.September, 7, 10, 0, 0, 0, time.UTC)
	original, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: player.ID,
		ArenaID:       arena.ID,
		StartTime:     start,
	})
	if err != nil {
		t.Fatalf("player create: %v", err)
	}

	replacement, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: admin.ID,
		ArenaID:       arena.ID,
		StartTime:     start,
	})
	if err != nil {
		t.Fatalf("admin create should evict, got %v", err)
	}

	if _, err := database.Queries.GetReservation(ctx, original.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("evicted reservation still present, err = %v", err)
	}
	reservations, err := database.Queries.ListReservationsByArena(ctx, arena.ID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(reservations) != 1 || reservations[0].ID != replacement.ID {
		t.Fatalf("expected only the admin reservation to survive, got %d rows", len(reservations))
	}

	// The admin's booking never consumes quota.
	stored, err := database.Queries.GetUser(ctx, admin.ID)
	if err != nil {
		t.Fatalf("reload admin: %v", err)
	}
	if stored.LastWeeklyParticipation != nil {
		t.Fatal("admin create advanced the weekly marker")
	}
}

func TestEngineCreate_NonAdminConflictRejected(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	alice := createTestUser(t, database, "alice@example.com", false, true)
	bob := createTestUser(t, database, "bob@example.com", false, true)

	start := time.Date(2026, time.September, 7, 11, 30, 0, 0, time.UTC)
	if _, err := engine.Create(ctx, CreateRequest{ResponsibleID: alice.ID, ArenaID: arena.ID, StartTime: start}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := engine.Create(ctx, CreateRequest{ResponsibleID: bob.ID, ArenaID: arena.ID, StartTime: start})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected slot taken, got %v", err)
	}
}

func TestEngineCreate_ParticipantResolution(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	responsible := createTestUser(t, database, "captain@example.com", false, true)
	friend := createTestUser(t, database, "friend@example.com", false, true)
	inactive, err := database.Queries.CreateUser(ctx, appdb.CreateUserParams{
		Email: "inactive@example.com", FullName: "Gone", Internal: true,
	})
	if err != nil {
		t.Fatalf("create inactive user: %v", err)
	}

	created, err := engine.Create(ctx, CreateRequest{
		ResponsibleID:  responsible.ID,
		ArenaID:        arena.ID,
		StartTime:      time.Date(2026, time.September, 7, 13, 0, 0, 0, time.UTC),
		ParticipantIDs: []uuid.UUID{friend.ID, inactive.ID, uuid.New(), responsible.ID},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	participants, err := database.Queries.ListParticipants(ctx, created.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("got %d participants, want 2 (responsible and friend)", len(participants))
	}
	found := map[uuid.UUID]bool{}
	for _, p := range participants {
		found[p.ID] = true
	}
	if !found[responsible.ID] || !found[friend.ID] {
		t.Fatal("participant set missing responsible or friend")
	}
}

func TestEngineUpdate_MovesWindow(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	user := createTestUser(t, database, "player@example.com", false, true)

	created, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newStart := time.Date(2026, time.September, 7, 14, 30, 0, 0, time.UTC)
	updated, err := engine.Update(ctx, UpdateRequest{
		ID:        created.ID,
		StartTime: newStart,
		EndTime:   newStart.Add(models.ReservationDuration),
	}, user.ID)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.StartTime.Equal(newStart) {
		t.Fatalf("start time = %s, want %s", updated.StartTime, newStart)
	}
}

func TestEngineUpdate_SelfOverlapAllowed(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	user := createTestUser(t, database, "player@example.com", false, true)

	start := time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC)
	created, err := engine.Create(ctx, CreateRequest{ResponsibleID: user.ID, ArenaID: arena.ID, StartTime: start})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Re-submitting the same window must not collide with itself.
	if _, err := engine.Update(ctx, UpdateRequest{
		ID:        created.ID,
		StartTime: start,
		EndTime:   start.Add(models.ReservationDuration),
	}, user.ID); err != nil {
		t.Fatalf("same-window update: %v", err)
	}
}

func TestEngineUpdate_Rejections(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	owner := createTestUser(t, database, "owner@example.com", false, true)
	other := createTestUser(t, database, "other@example.com", false, true)

	start := time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC)
	created, err := engine.Create(ctx, CreateRequest{ResponsibleID: owner.ID, ArenaID: arena.ID, StartTime: start})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	blocker, err := engine.Create(ctx, CreateRequest{
		ResponsibleID: other.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 7, 8, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create blocker: %v", err)
	}

	// Not the responsible user and not an admin.
	if _, err := engine.Update(ctx, UpdateRequest{
		ID:        created.ID,
		StartTime: start,
		EndTime:   start.Add(models.ReservationDuration),
	}, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// Window is not exactly 90 minutes.
	if _, err := engine.Update(ctx, UpdateRequest{
		ID:        created.ID,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}, owner.ID); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected invalid schedule, got %v", err)
	}

	// Moving onto another reservation's window.
	if _, err := engine.Update(ctx, UpdateRequest{
		ID:        created.ID,
		StartTime: blocker.StartTime,
		EndTime:   blocker.EndTime,
	}, owner.ID); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected slot taken, got %v", err)
	}

	// Unknown reservation.
	if _, err := engine.Update(ctx, UpdateRequest{
		ID:        uuid.New(),
		StartTime: start,
		EndTime:   start.Add(models.ReservationDuration),
	}, owner.ID); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected reservation not found, got %v", err)
	}
}

func TestEngineCancel(t *testing.T) {
	engine, database, clock := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	owner := createTestUser(t, database, "owner@example.com", false, true)
	other := createTestUser(t, database, "other@example.com", false, true)
	admin := createTestUser(t, database, "admin@example.com", true, true)

	start := time.Date(2026, time.September, 7, 7, 0, 0, 0, time.UTC)
	created, err := engine.Create(ctx, CreateRequest{ResponsibleID: owner.ID, ArenaID: arena.ID, StartTime: start})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := engine.Cancel(ctx, created.ID, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	// One minute past the start time nobody may cancel, not even an
	// admin.
	clock.Set(start.Add(time.Minute))
	if err := engine.Cancel(ctx, created.ID, owner.ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	if err := engine.Cancel(ctx, created.ID, admin.ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("admin past start: expected already started, got %v", err)
	}

	clock.Set(start.Add(-time.Hour))
	if err := engine.Cancel(ctx, created.ID, owner.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// No quota refund: the weekly marker stays where the booking put it.
	stored, err := database.Queries.GetUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.LastWeeklyParticipation == nil || !stored.LastWeeklyParticipation.Equal(start) {
		t.Fatalf("weekly marker after cancel = %v, want %s", stored.LastWeeklyParticipation, start)
	}

	if err := engine.Cancel(ctx, created.ID, owner.ID); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected reservation not found, got %v", err)
	}
}

func TestEngineCreate_AdminSkipsQuota(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportTennis)
	admin := createTestUser(t, database, "admin@example.com", true, true)

	// Far beyond the 7-day horizon and before the Thursday cutoff.
	start := time.Date(2026, time.September, 21, 7, 0, 0, 0, time.UTC)
	if _, err := engine.Create(ctx, CreateRequest{ResponsibleID: admin.ID, ArenaID: arena.ID, StartTime: start}); err != nil {
		t.Fatalf("admin create beyond horizon: %v", err)
	}
}

func TestEngineCreate_MonthlyMarker(t *testing.T) {
	engine, database, _ := newTestEngine(t)
	ctx := context.Background()

	arena := createTestArena(t, database, models.SportVolleyball)
	user := createTestUser(t, database, "player@example.com", false, true)

	start := time.Date(2026, time.September, 14, 16, 0, 0, 0, time.UTC)
	if _, err := engine.Create(ctx, CreateRequest{ResponsibleID: user.ID, ArenaID: arena.ID, StartTime: start}); err != nil {
		t.Fatalf("create: %v", err)
	}

	stored, err := database.Queries.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.LastMonthlyParticipation == nil || !stored.LastMonthlyParticipation.Equal(start) {
		t.Fatalf("monthly marker = %v, want %s", stored.LastMonthlyParticipation, start)
	}
	if stored.LastWeeklyParticipation != nil {
		t.Fatal("monthly sport advanced the weekly marker")
	}

	// A second volleyball booking in the same month is out.
	_, err = engine.Create(ctx, CreateRequest{
		ResponsibleID: user.ID,
		ArenaID:       arena.ID,
		StartTime:     time.Date(2026, time.September, 28, 16, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}
