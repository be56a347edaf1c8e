// Package main contains the entrypoint of a projector application,
// running catch-up Subscriptions over a PostgreSQL Event Store.
//
// The "users-by-email" projection is rebuilt in memory at every start,
// while the optional Kafka relay checkpoints its progress in Firestore,
// MongoDB or PostgreSQL, depending on the configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/get-eventually/go-catchup/correlation"
	"github.com/get-eventually/go-catchup/event"
	catchupfirestore "github.com/get-eventually/go-catchup/firestore"
	"github.com/get-eventually/go-catchup/internal/user"
	"github.com/get-eventually/go-catchup/kafka"
	"github.com/get-eventually/go-catchup/logger"
	"github.com/get-eventually/go-catchup/mongodb"
	"github.com/get-eventually/go-catchup/oteleventually"
	"github.com/get-eventually/go-catchup/postgres"
	"github.com/get-eventually/go-catchup/projection"
	"github.com/get-eventually/go-catchup/serde"
	"github.com/get-eventually/go-catchup/subscription"
	"github.com/get-eventually/go-catchup/subscription/checkpoint"
	"github.com/get-eventually/go-catchup/version"
	"github.com/get-eventually/go-catchup/zaplogger"
)

func connect(ctx context.Context, cfg *config, l logger.Logger) (*pgxpool.Pool, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = cfg.Database.ConnectTimeout

	var pool *pgxpool.Pool

	operation := func() error {
		conn, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return backoff.Permanent(err)
		}

		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			logger.Info(l, "database not ready yet", logger.Err(err))

			return err
		}

		pool = conn

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	return pool, nil
}

func newCheckpointer(ctx context.Context, cfg *config, pool *pgxpool.Pool) (checkpoint.Checkpointer, func() error, error) {
	switch {
	case cfg.Firestore.ProjectID != "":
		return newFirestoreCheckpointer(ctx, cfg)
	case cfg.Mongo.URI != "":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}

		return mongodb.Checkpointer{
			Client:       client,
			DatabaseName: cfg.Mongo.Database,
		}, func() error { return client.Disconnect(context.Background()) }, nil
	default:
		return postgres.Checkpointer{Conn: pool}, func() error { return nil }, nil
	}
}

func newFirestoreCheckpointer(ctx context.Context, cfg *config) (checkpoint.Checkpointer, func() error, error) {
	var opts []option.ClientOption

	if cfg.Firestore.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Firestore.Endpoint))
	}

	if cfg.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return catchupfirestore.Checkpointer{
		Client:     client,
		Collection: cfg.Firestore.Collection,
	}, client.Close, nil
}

func newKafkaProducer(cfg *config) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Version = sarama.V3_6_0_0

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return producer, nil
}

func instrument(name string, consumer event.Consumer, l logger.Logger) (event.Consumer, error) {
	interceptor, err := oteleventually.NewInterceptor[event.Persisted, version.SequenceNumber](
		name,
		oteleventually.PersistedEventAttributes,
	)
	if err != nil {
		return nil, err
	}

	return subscription.Intercept[event.Persisted, version.SequenceNumber](consumer,
		correlation.Interceptor{},
		interceptor,
		subscription.LoggingInterceptor[event.Persisted, version.SequenceNumber]{Name: name, Logger: l},
	), nil
}

//nolint:funlen // Wiring of the application components.
func run() error {
	cfg, err := parseConfig()
	if err != nil {
		return fmt.Errorf("projector.main: failed to parse config: %w", err)
	}

	zl, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("projector.main: failed to initialize logger: %w", err)
	}

	l := zaplogger.Wrap(zl)

	//nolint:errcheck // Sync fails on stderr in most terminals.
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("projector.main: %w", err)
	}

	defer pool.Close()

	if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("projector.main: %w", err)
	}

	registry := serde.NewRegistry[[]byte]()
	user.RegisterSerdes(registry)

	eventStore := postgres.NewEventStore(pool, registry, postgres.WithLogger(l))

	orchestrator := subscription.NewOrdered[event.Persisted](eventStore,
		subscription.WithName(cfg.Subscription.Name),
		subscription.WithQueueCapacity(cfg.Subscription.QueueCapacity),
		subscription.WithLogger(l),
	)

	usersByEmail, err := instrument("users-by-email", projection.NewConsumer("users-by-email",
		projection.NewRouter().Handle(user.NewByEmail(), user.WasCreatedName, user.EmailWasUpdatedName),
		projection.WithErrorPolicy(projection.NewRetryPolicy(
			projection.WithMaxRetries(cfg.Subscription.MaxRetries),
		)),
		projection.WithLogger(l),
	), l)
	if err != nil {
		return fmt.Errorf("projector.main: failed to instrument consumer: %w", err)
	}

	if _, err := orchestrator.Register("users-by-email", usersByEmail); err != nil {
		return fmt.Errorf("projector.main: %w", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		checkpointer, closeCheckpointer, err := newCheckpointer(ctx, cfg, pool)
		if err != nil {
			return fmt.Errorf("projector.main: %w", err)
		}

		//nolint:errcheck // Closed on shutdown.
		defer closeCheckpointer()

		producer, err := newKafkaProducer(cfg)
		if err != nil {
			return fmt.Errorf("projector.main: %w", err)
		}

		//nolint:errcheck // Closed on shutdown.
		defer producer.Close()

		relay, err := instrument("kafka-relay", projection.NewConsumer("kafka-relay",
			kafka.NewPublisher(producer, registry, cfg.Kafka.Topic),
			projection.WithCheckpointer(checkpointer),
			projection.WithErrorPolicy(projection.NewRetryPolicy(
				projection.WithMaxRetries(cfg.Subscription.MaxRetries),
			)),
			projection.WithLogger(l),
		), l)
		if err != nil {
			return fmt.Errorf("projector.main: failed to instrument consumer: %w", err)
		}

		if _, err := orchestrator.Register("kafka-relay", relay); err != nil {
			return fmt.Errorf("projector.main: %w", err)
		}
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	listener, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("projector.main: failed to listen on %s: %w", cfg.Server.Address, err)
	}

	if err := orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("projector.main: failed to start subscription: %w", err)
	}

	defer func() {
		if err := orchestrator.Close(); err != nil {
			logger.Error(l, "failed to close subscription", logger.Err(err))
		}
	}()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Info(l, "grpc server started", logger.With("address", cfg.Server.Address))

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server exited with error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		defer grpcServer.GracefulStop()

		err := orchestrator.Wait(ctx)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("projector.main: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}
