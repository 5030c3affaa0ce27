package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/RoGogDBD/data-logger/internal/config"
	models "github.com/RoGogDBD/data-logger/internal/model"
)

// Archive пишет каждую готовую точку данных в PostgreSQL.
//
// Реализует наблюдателей ядра: точки данных принимаются без блокировки
// пути сборки (через буферизованный канал), переполнение канала приводит
// к отбрасыванию точки с записью в лог.
type Archive struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	queue chan archiveItem
	done  chan struct{}

	session chan string // последний известный идентификатор сессии
}

type archiveItem struct {
	session string
	dp      models.Datapoint
}

// NewArchive создаёт архив и запускает фоновую запись.
func NewArchive(pool *pgxpool.Pool, log *zap.Logger) *Archive {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Archive{
		pool:    pool,
		log:     log,
		queue:   make(chan archiveItem, 256),
		done:    make(chan struct{}),
		session: make(chan string, 1),
	}
	a.session <- ""
	go a.run()
	return a
}

// OnConfigurationChanged запоминает идентификатор новой сессии.
func (a *Archive) OnConfigurationChanged(cfg models.SessionConfig) {
	<-a.session
	a.session <- cfg.ID
}

// OnDatapointReady ставит точку данных в очередь на запись.
func (a *Archive) OnDatapointReady(dp models.Datapoint) {
	id := <-a.session
	a.session <- id

	select {
	case a.queue <- archiveItem{session: id, dp: dp}:
	default:
		a.log.Warn("archive queue full, datapoint dropped")
	}
}

// Close останавливает фоновую запись, дописав очередь.
func (a *Archive) Close() {
	close(a.queue)
	<-a.done
}

func (a *Archive) run() {
	defer close(a.done)
	for item := range a.queue {
		if err := a.insert(context.Background(), item); err != nil {
			a.log.Error("failed to archive datapoint", zap.Error(err))
		}
	}
}

func (a *Archive) insert(ctx context.Context, item archiveItem) error {
	return config.RetryWithBackoff(ctx, func() error {
		tx, err := a.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		stmt := `
				INSERT INTO datapoints (session_id, variable, value)
				VALUES ($1, $2, $3)
			`

		for name, value := range item.dp {
			var v *float64
			if !math.IsNaN(float64(value)) {
				f := float64(value)
				v = &f
			}
			if _, err := tx.Exec(ctx, stmt, item.session, name, v); err != nil {
				return fmt.Errorf("failed to insert value %s: %w", name, err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
