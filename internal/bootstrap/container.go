package bootstrap

import (
	"context"
	"log"

	"spatial-canvas-core/internal/config"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/internal/repository/contract"
	"spatial-canvas-core/internal/service"
	"spatial-canvas-core/pkg/dragdrop"
	"spatial-canvas-core/pkg/events"
	pkgNats "spatial-canvas-core/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Container wires one canvas session: the store, the interaction engines and
// the event bus they publish on. The repository is injected so commands can
// choose between the database and the in-memory store.
type Container struct {
	Logger    logger.ILogger
	Bus       *gochannel.GoChannel
	Publisher events.CanvasPublisher
	Registry  *dragdrop.Registry
	Engine    *dragdrop.Engine
	Canvas    service.ICanvasService

	// natsPub is non-nil only when the external event mirror is configured.
	natsPub *pkgNats.Publisher
}

func NewContainer(projectId uuid.UUID, repo contract.DocumentRepository, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	publisher := events.NewWatermillPublisher(pubSub, sysLogger)

	// Interaction engines share one drop-zone registry.
	registry := dragdrop.NewRegistry(publisher, sysLogger)
	engine := dragdrop.NewEngine(registry, publisher, cfg.Canvas.FrameInterval, cfg.Canvas.DragDeadZone, sysLogger)

	canvas := service.NewCanvasService(projectId, repo, publisher, cfg, sysLogger)

	// External event mirror. Optional: without a NATS url the session stays
	// fully in-process.
	var natsPub *pkgNats.Publisher
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pkgNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		} else {
			relay := service.NewRelayService(pubSub, projectId, natsPub, sysLogger)
			if err := relay.Relay(context.Background()); err != nil {
				sysLogger.Error("BOOTSTRAP", "Event mirror failed to start", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}

	sysLogger.Info("BOOTSTRAP", "Canvas session wired", map[string]interface{}{
		"project_id": projectId.String(),
		"mirrored":   natsPub != nil,
	})

	return &Container{
		Logger:    sysLogger,
		Bus:       pubSub,
		Publisher: publisher,
		Registry:  registry,
		Engine:    engine,
		Canvas:    canvas,
		natsPub:   natsPub,
	}
}

// Subscribe attaches a consumer to one canvas event topic.
func (c *Container) Subscribe(ctx context.Context, eventType string) (<-chan *message.Message, error) {
	return c.Bus.Subscribe(ctx, eventType)
}

// Close flushes the store and tears the bus down.
func (c *Container) Close(ctx context.Context) error {
	err := c.Canvas.Close(ctx)
	if busErr := c.Bus.Close(); busErr != nil && err == nil {
		err = busErr
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	_ = c.Logger.Sync()
	return err
}
