package backend

import (
	"context"
	"fmt"
	"log/slog"

	"cashbook/internal/amqp"
	"cashbook/internal/config"
	"cashbook/internal/directory"
	"cashbook/internal/events/kafka"
	"cashbook/internal/lock"
	"cashbook/internal/services"
	"cashbook/internal/storage"
	"cashbook/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the store and collects the write lock, event
// publisher, staff directory and calendar cache options for the service.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	backendType := BackendType(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	store, err := f.createStore(backendType, cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Store:   store,
		Options: []services.Option{services.WithCalendarTTL(cfg.CalendarCacheTTL)},
	}

	if err := f.addLocker(ctx, res, cfg); err != nil {
		store.Close()
		res.Cleanup()
		return nil, err
	}
	if err := f.addDirectory(res, cfg); err != nil {
		store.Close()
		res.Cleanup()
		return nil, err
	}
	// Last: the publisher holds a broker connection only the service closes.
	f.addPublisher(res, cfg)
	return res, nil
}

func (f *DefaultFactory) createStore(bt BackendType, cfg *config.Config) (storage.Store, error) {
	switch bt {
	case MemoryBackend:
		f.logger.Info("Initialized memory storage", "backend", bt)
		return memory.New(), nil
	default:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite storage", "backend", bt, "db_path", cfg.SQLiteDBPath)
		return repo, nil
	}
}

func (f *DefaultFactory) addLocker(ctx context.Context, res *Result, cfg *config.Config) error {
	if cfg.LockBackend != "redis" {
		return nil
	}
	locker, rdb, err := lock.NewRedisLocker(ctx, cfg.RedisAddress, cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	res.Options = append(res.Options,
		services.WithLocker(locker),
		services.WithHolidayVersion(lock.NewRedisVersion(rdb, "holidays")))
	res.cleanups = append(res.cleanups, rdb.Close)
	f.logger.Info("Using Redis write locks", "address", cfg.RedisAddress, "ttl", cfg.LockTTL)
	return nil
}

// addPublisher never fails: events are best effort and the ledger keeps
// serving without a broker.
func (f *DefaultFactory) addPublisher(res *Result, cfg *config.Config) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to connect to AMQP, events disabled", "error", err)
			return
		}
		res.Options = append(res.Options, services.WithPublisher(client))
		f.logger.Info("Publishing ledger events to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	case "kafka":
		res.Options = append(res.Options, services.WithPublisher(kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)))
		f.logger.Info("Publishing ledger events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
}

func (f *DefaultFactory) addDirectory(res *Result, cfg *config.Config) error {
	if cfg.DirectoryDir == "" {
		return nil
	}
	staff, err := directory.LoadStatic(cfg.DirectoryDir)
	if err != nil {
		return fmt.Errorf("load staff directory: %w", err)
	}
	res.Options = append(res.Options, services.WithDirectory(staff))
	return nil
}
