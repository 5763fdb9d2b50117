package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"hap/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestCallNextConcurrency(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	const patients = 10
	for i := 0; i < patients; i++ {
		if _, err := st.CreateTicket(ctx, store.CreateTicketInput{
			PatientName: "Paciente Concurrente",
			Assignments: []store.AssignmentRequest{{Specialty: "Dental"}},
		}); err != nil {
			t.Fatalf("create ticket: %v", err)
		}
	}

	type callResult struct {
		assignmentID int64
		ok           bool
		err          error
	}

	var wg sync.WaitGroup
	results := make(chan callResult, patients*2)
	for i := 0; i < patients*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assignment, ok, err := st.CallNext(ctx, store.CallNextInput{RoomID: 14})
			results <- callResult{assignmentID: assignment.AssignmentID, ok: ok, err: err}
		}()
	}
	wg.Wait()
	close(results)

	claimed := map[int64]int{}
	misses := 0
	for result := range results {
		if result.err != nil {
			t.Fatalf("call next error: %v", result.err)
		}
		if result.ok {
			claimed[result.assignmentID]++
		} else {
			misses++
		}
	}
	if len(claimed) != patients {
		t.Fatalf("expected %d distinct claims, got %d", patients, len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("assignment %d claimed %d times", id, count)
		}
	}
	if misses != patients {
		t.Fatalf("expected %d empty results, got %d", patients, misses)
	}
}

func TestCallNextFIFOOrder(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	base := time.Now().UTC().Truncate(time.Second)
	var wantOrder []int64
	for i := 0; i < 3; i++ {
		ticket, err := st.CreateTicket(ctx, store.CreateTicketInput{
			PatientName: "Paciente Ordenado",
			Assignments: []store.AssignmentRequest{{Specialty: "Pediatría"}},
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create ticket: %v", err)
		}
		wantOrder = append(wantOrder, ticket.Assignments[0].AssignmentID)
	}

	for i, want := range wantOrder {
		assignment, ok, err := st.CallNext(ctx, store.CallNextInput{RoomID: 4})
		if err != nil {
			t.Fatalf("call next %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected assignment at position %d", i)
		}
		if assignment.AssignmentID != want {
			t.Fatalf("position %d: expected assignment %d, got %d", i, want, assignment.AssignmentID)
		}
	}

	if _, ok, err := st.CallNext(ctx, store.CallNextInput{RoomID: 4}); err != nil || ok {
		t.Fatalf("expected drained queue, ok=%v err=%v", ok, err)
	}
}

func TestCallNextDayScoping(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	yesterday := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := st.CreateTicket(ctx, store.CreateTicketInput{
		PatientName: "Paciente Antiguo",
		Assignments: []store.AssignmentRequest{{Specialty: "Medicina"}},
		CreatedAt:   yesterday,
	}); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	if _, ok, err := st.CallNext(ctx, store.CallNextInput{RoomID: 10}); err != nil || ok {
		t.Fatalf("stale assignment must not be callable, ok=%v err=%v", ok, err)
	}
}

func TestLastAttendedAndHistory(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	for _, name := range []string{"Primero Paciente", "Segundo Paciente"} {
		if _, err := st.CreateTicket(ctx, store.CreateTicketInput{
			PatientName: name,
			Assignments: []store.AssignmentRequest{{Specialty: "Cirugía"}},
		}); err != nil {
			t.Fatalf("create ticket: %v", err)
		}
	}

	first, ok, err := st.CallNext(ctx, store.CallNextInput{RoomID: 3})
	if err != nil || !ok {
		t.Fatalf("call next: ok=%v err=%v", ok, err)
	}
	second, ok, err := st.CallNext(ctx, store.CallNextInput{
		RoomID:   3,
		CalledAt: time.Now().UTC().Add(time.Minute),
	})
	if err != nil || !ok {
		t.Fatalf("call next: ok=%v err=%v", ok, err)
	}

	last, found, err := st.LastAttended(ctx, 3, time.Now().UTC())
	if err != nil || !found {
		t.Fatalf("last attended: found=%v err=%v", found, err)
	}
	if last.AssignmentID != second.AssignmentID {
		t.Fatalf("expected last claim %d, got %d", second.AssignmentID, last.AssignmentID)
	}

	history, err := st.ListAttended(ctx, 3, time.Now().UTC())
	if err != nil {
		t.Fatalf("list attended: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 attended, got %d", len(history))
	}
	if history[0].AssignmentID != second.AssignmentID || history[1].AssignmentID != first.AssignmentID {
		t.Fatalf("history not newest-first: %v then %v", history[0].AssignmentID, history[1].AssignmentID)
	}
}

func TestCreateTicketCanonicalSpecialtyCasing(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	ticket, err := st.CreateTicket(ctx, store.CreateTicketInput{
		PatientName: "Maria Quispe",
		Assignments: []store.AssignmentRequest{{Specialty: "pediatría"}},
	})
	if err != nil {
		t.Fatalf("create ticket with lowercase specialty: %v", err)
	}
	if got := ticket.Assignments[0].Specialty; got != "Pediatría" {
		t.Fatalf("expected canonical specialty name, got %q", got)
	}

	updated, err := st.UpdateTicket(ctx, store.UpdateTicketInput{
		TicketID:     ticket.TicketID,
		AssignmentID: ticket.Assignments[0].AssignmentID,
		Specialty:    "DENTAL",
	})
	if err != nil {
		t.Fatalf("update ticket with uppercase specialty: %v", err)
	}
	if got := updated.Assignments[0].Specialty; got != "Dental" {
		t.Fatalf("expected canonical specialty name after update, got %q", got)
	}
}

func TestHasPendingTicketCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	if _, err := st.CreateTicket(ctx, store.CreateTicketInput{
		PatientName: "Maria Quispe",
		Assignments: []store.AssignmentRequest{{Specialty: "Ginecología"}},
	}); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	pending, err := st.HasPendingTicket(ctx, "MARIA QUISPE", time.Now().UTC())
	if err != nil {
		t.Fatalf("has pending: %v", err)
	}
	if !pending {
		t.Fatal("expected pending match regardless of case")
	}

	if _, _, err := st.CallNext(ctx, store.CallNextInput{RoomID: 5}); err != nil {
		t.Fatalf("call next: %v", err)
	}
	pending, err = st.HasPendingTicket(ctx, "Maria Quispe", time.Now().UTC())
	if err != nil {
		t.Fatalf("has pending: %v", err)
	}
	if pending {
		t.Fatal("attended patient should not count as pending")
	}
}

func TestUpdateTicketPersists(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	ticket, err := st.CreateTicket(ctx, store.CreateTicketInput{
		PatientName: "Nombre Errado",
		Assignments: []store.AssignmentRequest{{Specialty: "Dental"}},
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	updated, err := st.UpdateTicket(ctx, store.UpdateTicketInput{
		TicketID:     ticket.TicketID,
		PatientName:  "Nombre Correcto",
		AssignmentID: ticket.Assignments[0].AssignmentID,
		Specialty:    "Pediatría",
		RoomID:       4,
	})
	if err != nil {
		t.Fatalf("update ticket: %v", err)
	}
	if updated.PatientName != "Nombre Correcto" {
		t.Fatalf("name not updated: %q", updated.PatientName)
	}
	if got := updated.Assignments[0]; got.Specialty != "Pediatría" || got.RoomID != 4 {
		t.Fatalf("assignment not updated: %+v", got)
	}

	if _, err := st.UpdateTicket(ctx, store.UpdateTicketInput{TicketID: 9999, PatientName: "Otro Nombre"}); err != store.ErrTicketNotFound {
		t.Fatalf("expected ErrTicketNotFound, got %v", err)
	}
}

func TestListSpecialtiesSeeded(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	specialties, err := st.ListSpecialties(ctx)
	if err != nil {
		t.Fatalf("list specialties: %v", err)
	}
	if len(specialties) != 14 {
		t.Fatalf("expected 14 seeded specialties, got %d", len(specialties))
	}
	if specialties[0].Name != "Traumatología" || specialties[0].RoomID != 1 {
		t.Fatalf("unexpected first specialty %+v", specialties[0])
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{Location: time.UTC})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
