package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var specialties = []string{
	"Clínica Geral",
	"Cardiologia",
	"Dermatologia",
	"Pediatria",
	"Ortopedia",
	"Ginecologia",
	"Psiquiatria",
	"Oftalmologia",
}

var insurances = []string{"Unimed", "Bradesco Saúde", "SulAmérica", "Amil"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("seed", "prod").Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New("seed", cfg.Env)
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	specIDs, err := seedNamed(ctx, pool, "specialties", specialties)
	if err != nil {
		logger.Error("seed specialties", "error", err)
		os.Exit(1)
	}
	if _, err := seedNamed(ctx, pool, "insurances", insurances); err != nil {
		logger.Error("seed insurances", "error", err)
		os.Exit(1)
	}

	profIDs, err := seedProfessionals(ctx, pool, faker, 20)
	if err != nil {
		logger.Error("seed professionals", "error", err)
		os.Exit(1)
	}
	if err := seedPatients(ctx, pool, faker, logger, 2000); err != nil {
		logger.Error("seed patients", "error", err)
		os.Exit(1)
	}

	svc := schedule.NewService(schedule.NewPgRepository(pool), cfg.Location(), logger)
	if err := seedAgendas(ctx, svc, faker, profIDs, specIDs); err != nil {
		logger.Error("seed availability", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

// seedNamed inserts lookup rows by name and returns the ids, reusing rows
// left by a previous run.
func seedNamed(ctx context.Context, pool *pgxpool.Pool, table string, names []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		var id uuid.UUID
		err := pool.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, table), uuid.New(), name).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", table, name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO professionals (id, name, created_at, updated_at)
				VALUES ($1, $2, now(), now())
			`, id, "Dr(a). "+faker.Name())
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, logger *slog.Logger, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				birth := faker.DateRange(
					time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
				)
				phone := fmt.Sprintf("119%08d", faker.Number(0, 99999999))

				_, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, phone, email, birth_date, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, now(), now())
				`, uuid.New(), faker.Name(), phone, faker.Email(), schedule.Date(birth))
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("patients seeded", "done", end, "total", count)
	}
	return nil
}

// seedAgendas gives every professional one weekly group of a random kind,
// valid for the next three months.
func seedAgendas(ctx context.Context, svc *schedule.Service, faker *gofakeit.Faker, profIDs, specIDs []uuid.UUID) error {
	from := schedule.Date(time.Now())
	until := from.AddDate(0, 3, 0)
	kinds := []schedule.Kind{schedule.KindFixed, schedule.KindInterval, schedule.KindPeriod}

	for _, prof := range profIDs {
		in := schedule.GroupInput{
			ProfessionalID: prof,
			SpecialtyID:    specIDs[faker.Number(0, len(specIDs)-1)],
			DaysOfWeek:     []int{1, 3, 5},
			ValidFrom:      from,
			ValidUntil:     until,
			Active:         true,
			Kind:           kinds[faker.Number(0, len(kinds)-1)],
			Price:          decimal.NewFromInt(int64(faker.Number(8, 30) * 10)),
		}
		switch in.Kind {
		case schedule.KindFixed:
			in.FixedTimes = []schedule.FixedTime{
				{Time: schedule.NewTimeOfDay(8, 0), Capacity: 2},
				{Time: schedule.NewTimeOfDay(9, 0), Capacity: 2},
				{Time: schedule.NewTimeOfDay(10, 0), Capacity: 1},
			}
		case schedule.KindInterval:
			in.StartTime = schedule.NewTimeOfDay(13, 0)
			in.EndTime = schedule.NewTimeOfDay(17, 0)
			in.IntervalMinutes = 30
		case schedule.KindPeriod:
			in.StartTime = schedule.NewTimeOfDay(8, 0)
			in.EndTime = schedule.NewTimeOfDay(12, 0)
			in.Capacity = faker.Number(4, 12)
		}

		if _, _, err := svc.CreateGroup(ctx, in); err != nil {
			return fmt.Errorf("professional %s: %w", prof, err)
		}
	}
	return nil
}
