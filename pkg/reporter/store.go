package reporter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethpandaops/pgbenchoor/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const measurementBatchSize = 500

// Store persists results into a SQL database for historical comparison.
type Store struct {
	log  logrus.FieldLogger
	cfg  *config.StoreConfig
	meta RunMeta
	db   *gorm.DB
	ctx  context.Context
	set  *resultSet
	now  func() time.Time
}

// Ensure interface compliance.
var (
	_ Reporter   = (*Store)(nil)
	_ RunLabeler = (*Store)(nil)
)

// NewStore creates a store reporter. Start must be called before Finish.
func NewStore(log logrus.FieldLogger, cfg *config.StoreConfig, meta RunMeta) *Store {
	return &Store{
		log:  log.WithField("component", "store-reporter"),
		cfg:  cfg,
		meta: meta,
		ctx:  context.Background(),
		set:  newResultSet(),
		now:  time.Now,
	}
}

// Start opens the database connection and runs migrations.
func (s *Store) Start(ctx context.Context) error {
	var (
		dialector gorm.Dialector
		err       error
	)

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	s.db, err = gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&BenchmarkRun{},
		&RunTarget{},
		&Measurement{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.ctx = ctx
	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *Store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	s.db = nil

	return sqlDB.Close()
}

// AddResult implements Reporter. Results are buffered until Finish.
func (s *Store) AddResult(experiment string, run, query int, value float64) {
	s.set.add(Result{Experiment: experiment, Run: run, Query: query, Value: value})
}

// LabelRun implements RunLabeler.
func (s *Store) LabelRun(run int, label string) {
	s.set.labels[run] = label
}

// Finish writes the run with all measurements in one transaction and closes
// the database.
func (s *Store) Finish() (err error) {
	if s.db == nil {
		return fmt.Errorf("store reporter was not started")
	}

	defer func() {
		if stopErr := s.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", stopErr)
		}
	}()

	run := &BenchmarkRun{
		ID:         s.meta.ID,
		Mode:       s.meta.Mode,
		Hostname:   s.meta.hostname(),
		StartedAt:  s.meta.StartedAt,
		FinishedAt: s.now().UTC(),
	}

	targets := make([]RunTarget, 0, len(s.set.labels))
	for r, label := range s.set.labels {
		targets = append(targets, RunTarget{BenchmarkRunID: run.ID, Run: r, Label: label})
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Run < targets[j].Run })

	measurements := make([]Measurement, 0, s.set.results)
	for _, name := range s.set.order {
		for _, r := range s.set.byName[name] {
			measurements = append(measurements, Measurement{
				BenchmarkRunID: run.ID,
				Experiment:     r.Experiment,
				Run:            r.Run,
				Query:          r.Query,
				LatencyMs:      r.Value,
			})
		}
	}

	err = s.db.WithContext(s.ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("creating run: %w", err)
		}

		if len(targets) > 0 {
			if err := tx.Create(&targets).Error; err != nil {
				return fmt.Errorf("creating run targets: %w", err)
			}
		}

		if len(measurements) > 0 {
			if err := tx.CreateInBatches(&measurements, measurementBatchSize).Error; err != nil {
				return fmt.Errorf("creating measurements: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting results: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"measurements": len(measurements),
	}).Info("Results stored")

	return nil
}
