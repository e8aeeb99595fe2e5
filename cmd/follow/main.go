package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"spatial-canvas-core/pkg/events"
	pkgNats "spatial-canvas-core/pkg/nats"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Tails the mirrored event stream of a running canvas session. Pass a project
// id to follow one session, or nothing to follow every subject on the stream.
func main() {
	// 1. Load Environment
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		log.Fatal("Error: NATS_URL is not set")
	}

	// 2. Pick the subject: one project or the whole firehose
	subject := "canvas.>"
	if len(os.Args) > 1 {
		projectId, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatalf("Error: invalid project id %q: %v", os.Args[1], err)
		}
		subject = "canvas." + projectId.String() + ".>"
	}

	// 3. Connect and subscribe
	sub, err := pkgNats.NewSubscriber(natsURL)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS: %v", err)
	}
	defer sub.Close()

	color.Cyan("👀 FOLLOWING CANVAS EVENTS")
	color.Cyan("   subject: %s", subject)

	err = sub.Subscribe(subject, "canvas-follow", func(ctx context.Context, evt events.Event) error {
		payload, _ := json.Marshal(evt.Payload())
		color.Magenta("⚡ %s %-24s %s", evt.Timestamp().Format("15:04:05.000"), evt.EventType(), payload)
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Subscribe failed: %v", err)
	}

	// 4. Stay up until interrupted
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
