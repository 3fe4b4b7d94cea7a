// Command data-prepper is the single-binary CLI surface: it takes the
// path to a topology document, parses and validates it into a DAG, builds
// every pipeline the validator's build order names, runs them until
// signaled, and shuts down gracefully within a bounded grace period.
//
// Grounded on the teacher's cmd/benthos/main.go for the flag/signal/graceful
// shutdown shape and lib/service/run.go for the urfave/cli/v2 App/Flag idiom.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/finnroblin/data-prepper/internal/build"
	"github.com/finnroblin/data-prepper/internal/log"
	"github.com/finnroblin/data-prepper/internal/metrics"
	"github.com/finnroblin/data-prepper/internal/peerforward"
	"github.com/finnroblin/data-prepper/internal/plugin"
	"github.com/finnroblin/data-prepper/internal/plugins/amqp"
	"github.com/finnroblin/data-prepper/internal/plugins/azureblob"
	"github.com/finnroblin/data-prepper/internal/plugins/buffer"
	"github.com/finnroblin/data-prepper/internal/plugins/clickhouse"
	"github.com/finnroblin/data-prepper/internal/plugins/dedupe"
	"github.com/finnroblin/data-prepper/internal/plugins/gcppubsub"
	"github.com/finnroblin/data-prepper/internal/plugins/httpclient"
	"github.com/finnroblin/data-prepper/internal/plugins/kafka"
	"github.com/finnroblin/data-prepper/internal/plugins/nats"
	"github.com/finnroblin/data-prepper/internal/plugins/parsejson"
	"github.com/finnroblin/data-prepper/internal/plugins/postgres"
	"github.com/finnroblin/data-prepper/internal/plugins/redis"
	"github.com/finnroblin/data-prepper/internal/plugins/s3"
	"github.com/finnroblin/data-prepper/internal/plugins/script"
	"github.com/finnroblin/data-prepper/internal/plugins/stdio"
	"github.com/finnroblin/data-prepper/internal/topology"
	"github.com/finnroblin/data-prepper/internal/validate"
)

func main() {
	var (
		logLevel     string
		metricsAddr  string
		gracePeriod  time.Duration
		peerSelf     string
		peerListen   string
		peerList     cli.StringSlice
	)

	app := &cli.App{
		Name:      "data-prepper",
		Usage:     "run a streaming pipeline topology",
		ArgsUsage: "<topology-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "info",
				Usage:       "debug, info, warn, or error",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "metrics-address",
				Value:       ":4195",
				Usage:       "address to serve /metrics on",
				Destination: &metricsAddr,
			},
			&cli.DurationFlag{
				Name:        "grace-period",
				Value:       30 * time.Second,
				Usage:       "time allowed for in-flight records to drain on shutdown",
				Destination: &gracePeriod,
			},
			&cli.StringFlag{
				Name:        "peer-self",
				Usage:       "this node's peer ID (setting it enables peer forwarding; --peer adds the other cluster members)",
				Destination: &peerSelf,
			},
			&cli.StringFlag{
				Name:        "peer-listen",
				Value:       ":4196",
				Usage:       "address this node accepts forwarded batches on",
				Destination: &peerListen,
			},
			&cli.StringSliceFlag{
				Name:        "peer",
				Usage:       "cluster peer as id=host:port, repeatable",
				Destination: &peerList,
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return cli.Exit("expected a topology document path", 1)
			}
			return run(path, logLevel, metricsAddr, gracePeriod, peerSelf, peerListen, peerList.Value())
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path, logLevel, metricsAddr string, gracePeriod time.Duration, peerSelf, peerListen string, peers []string) error {
	logger := log.New(os.Stdout, logLevel)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading topology document: %w", err)
	}
	doc, err := topology.ParseDoc(data)
	if err != nil {
		return fmt.Errorf("parsing topology document: %w", err)
	}

	result, err := validate.Validate(doc)
	if err != nil {
		return fmt.Errorf("validating topology: %w", err)
	}
	for _, w := range result.Warnings {
		logger.Warnf("%s: %s", w.Pipeline, w.Message)
	}

	promReg := prometheus.NewRegistry()
	metricsReg := metrics.NewRegistry(promReg)

	go serveMetrics(metricsAddr, promReg, logger)

	reg := plugin.NewRegistry()
	buffer.Register(reg)
	stdio.Register(reg)
	kafka.Register(reg)
	s3.Register(reg)
	gcppubsub.Register(reg)
	azureblob.Register(reg)
	redis.Register(reg)
	postgres.Register(reg)
	nats.Register(reg)
	amqp.Register(reg)
	httpclient.Register(reg)
	clickhouse.Register(reg)
	parsejson.Register(reg)
	script.Register(reg)
	dedupe.Register(reg)

	var pf *build.PeerForwardingConfig
	if peerSelf != "" {
		cluster := peerforward.NewStaticCluster(peerforward.PeerID(peerSelf), peers)
		transport := peerforward.NewHTTPTransport(peerListen, cluster, logger)
		pf = &build.PeerForwardingConfig{
			Peers:     cluster,
			Transport: transport,
			Retry:     peerforward.DefaultRetryPolicy(),
		}
	}

	builder := build.NewBuilder(reg, logger, metricsReg, pf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	built, err := builder.Build(ctx, doc, result.Order)
	if err != nil {
		return fmt.Errorf("building pipelines: %w", err)
	}
	for _, name := range built.Unwound {
		logger.Warnf("pipeline %q unwound due to a connected build failure", name)
	}
	if len(built.Pipelines) == 0 {
		return cli.Exit("no pipeline built successfully", 1)
	}

	for name, p := range built.Pipelines {
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("starting pipeline %q: %w", name, err)
		}
		logger.Infof("pipeline %q started", name)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Infoln("shutdown signal received, draining pipelines")

	stopCtx := context.Background()

	var stopErr error
	for name, p := range built.Pipelines {
		if err := p.Stop(stopCtx, gracePeriod); err != nil {
			logger.Errorf("pipeline %q did not stop cleanly: %v", name, err)
			stopErr = err
		}
	}
	if stopErr != nil {
		return cli.Exit("one or more pipelines failed to stop cleanly", 1)
	}
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Modular) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Errorf("metrics listener stopped: %v", err)
	}
}
