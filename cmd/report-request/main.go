package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/amqp"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cli"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

const usage = "usage: report-request <project-id> <fiscal-year YYYY-YYYY> [as-of YYYY-MM-DD]"

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to enqueue report requests")
		os.Exit(1)
	}

	fy, err := fiscal.ParseYear(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		os.Exit(2)
	}
	var asOf time.Time
	if len(os.Args) == 4 {
		asOf, err = time.Parse(time.DateOnly, os.Args[3])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid as-of %q\n%s\n", os.Args[3], usage)
			os.Exit(2)
		}
	}

	client, err := amqp.NewClient(amqp.Config{
		URL:               cfg.AMQPURL,
		Exchange:          cfg.AMQPExchange,
		RequestQueue:      cfg.AMQPRequestQueue,
		RequestRoutingKey: cfg.AMQPRequestRoutingKey,
		ResultRoutingKey:  cfg.AMQPResultRoutingKey,
	})
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	msg := amqp.NewReportRequestMessage(os.Args[1], fy, asOf)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.PublishReportRequest(ctx, msg); err != nil {
		logger.Error("Failed to enqueue report request", log.FieldError, err, log.FieldProjectID, msg.ProjectID)
		os.Exit(1)
	}
	fmt.Println(msg.RequestID)
}
