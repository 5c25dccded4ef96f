package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/pkg/logger"
)

// GormStore keeps scenarios in a relational database through gorm
type GormStore struct {
	db *gorm.DB

	// sqlite in-memory only
	dumpPath     string
	dumpInterval time.Duration
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

var gormConfig = &gorm.Config{
	SkipDefaultTransaction: true,
	Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
}

// OpenSQLite opens a file database, or a private in-memory database when path
// is empty. An in-memory database is copied to dumpPath every dumpInterval
// and once more on Close.
func OpenSQLite(path, dumpPath string, dumpInterval time.Duration) (*GormStore, error) {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:swarm-%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		dumpPath = ""
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	store, err := newGormStore(db)
	if err != nil {
		return nil, err
	}
	store.dumpPath = dumpPath
	store.dumpInterval = dumpInterval
	if dumpPath != "" && dumpInterval > 0 {
		store.wg.Add(1)
		go store.dumpLoop()
	}
	if path == "" {
		logger.Debug("Using in-memory SQLite store")
	} else {
		logger.Debugf("Using SQLite store at %s", path)
	}
	return store, nil
}

// OpenPostgres connects to a postgres database
func OpenPostgres(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db, stopChan: make(chan struct{})}, nil
}

// DB exposes the underlying connection
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) CreateScenario(ctx context.Context, sc *Scenario) error {
	if err := s.db.WithContext(ctx).Create(sc).Error; err != nil {
		return fmt.Errorf("failed to create scenario %s: %w", sc.ID, err)
	}
	return nil
}

// SaveProgress implements core.ProgressSink. Finished scenarios are not
// touched, so a late flush never overwrites a completion.
func (s *GormStore) SaveProgress(ctx context.Context, u core.ProgressUpdate) error {
	res := s.db.WithContext(ctx).Model(&Scenario{}).
		Where("id = ? AND completed_at IS NULL", u.ScenarioID.String()).
		Updates(map[string]interface{}{
			"status":          u.Status,
			"progress":        u.Progress,
			"sim_time":        u.SimTime,
			"frames_recorded": u.FramesRecorded,
			"active_friendly": u.ActiveFriendly,
			"active_enemy":    u.ActiveEnemy,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to save progress for %s: %w", u.ScenarioID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&Scenario{}).Where("id = ?", u.ScenarioID.String()).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to save progress for %s: %w", u.ScenarioID, err)
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *GormStore) CompleteScenario(ctx context.Context, id uuid.UUID, c Completion) error {
	fields := map[string]interface{}{
		"status":       c.Status,
		"error":        c.Error,
		"degraded":     c.Degraded,
		"completed_at": time.Now(),
	}
	for column, v := range map[string]interface{}{
		"statistics": c.Statistics,
		"frames":     c.Frames,
		"telemetry":  c.Telemetry,
	} {
		data, err := JSON(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", column, err)
		}
		if data != nil {
			fields[column] = data
		}
	}
	if c.Status == StatusCompleted {
		fields["progress"] = 100.0
	}

	res := s.db.WithContext(ctx).Model(&Scenario{}).Where("id = ?", id.String()).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to complete scenario %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetScenario(ctx context.Context, id uuid.UUID) (*Scenario, error) {
	var sc Scenario
	err := s.db.WithContext(ctx).First(&sc, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	return &sc, nil
}

// ListScenarios returns the newest scenarios first, without their frames
func (s *GormStore) ListScenarios(ctx context.Context, offset, limit int) ([]Scenario, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []Scenario
	err := s.db.WithContext(ctx).
		Omit("frames").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return out, nil
}

func (s *GormStore) SaveAlgorithmPerformance(ctx context.Context, p *AlgorithmPerformance) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to save algorithm performance: %w", err)
	}
	return nil
}

func (s *GormStore) SaveSwarmAnalytics(ctx context.Context, a *SwarmAnalytics) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to save swarm analytics: %w", err)
	}
	return nil
}

// Dump writes a point-in-time copy of the database to path (sqlite only)
func (s *GormStore) Dump(path string) error {
	if path == "" {
		return fmt.Errorf("dump path not set")
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing dump: %w", err)
		}
	}
	if err := s.db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error dumping database: %w", err)
	}
	return nil
}

func (s *GormStore) dumpLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.dumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := s.Dump(s.dumpPath); err != nil {
				logger.Warnf("SQLite dump failed: %v", err)
			} else {
				logger.Debugf("Dumped SQLite store to %s in %s", s.dumpPath, time.Since(start))
			}
		}
	}
}

// Close stops the dump loop, writes a final dump and closes the connection
func (s *GormStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()

	if s.dumpPath != "" {
		if err := s.Dump(s.dumpPath); err != nil {
			logger.Warnf("Final SQLite dump failed: %v", err)
		}
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
