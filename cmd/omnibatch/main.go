// Command omnibatch enumerates a dataset, builds a batch pipeline for one
// shard and prints one JSON line per batch.
//
// Usage:
//
//	omnibatch [flags] [root ...]
//
// Configuration comes from -config (YAML) and OMNIBATCH_* environment
// variables; flags and positional roots override both.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grokify/omnibatch"
	_ "github.com/grokify/omnibatch/backend/file"
	_ "github.com/grokify/omnibatch/backend/memory"
	_ "github.com/grokify/omnibatch/backend/s3"
	_ "github.com/grokify/omnibatch/backend/sftp"
	"github.com/grokify/omnibatch/enumerate"
	"github.com/grokify/omnibatch/format/ndjson"
	"github.com/grokify/omnibatch/internal/config"
	"github.com/grokify/omnibatch/internal/logging"
	"github.com/grokify/omnibatch/metrics"
	"github.com/grokify/omnibatch/reader"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	config      string
	batchSize   int
	shardIndex  int
	shardCount  int
	skip        int64
	maxBatches  int
	withData    bool
	fingerprint bool
	metricsAddr string
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, error) {
	fs := flag.NewFlagSet("omnibatch", flag.ContinueOnError)
	fs.SetOutput(stderr)

	f := &flags{}
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.IntVar(&f.batchSize, "batch-size", 0, "instances per batch (overrides config)")
	fs.IntVar(&f.shardIndex, "shard-index", -1, "shard of this worker (overrides config)")
	fs.IntVar(&f.shardCount, "shard-count", 0, "total number of shards (overrides config)")
	fs.Int64Var(&f.skip, "skip", -1, "instances to skip, the resume point (overrides config)")
	fs.IntVar(&f.maxBatches, "max-batches", 0, "stop after this many batches; 0 reads everything")
	fs.BoolVar(&f.withData, "data", false, "include instance payloads in the output")
	fs.BoolVar(&f.fingerprint, "fingerprint", false, "print the enumeration fingerprint and exit")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func (f *flags) apply(cfg *config.Config, roots []string) {
	if len(roots) > 0 {
		cfg.Source.Roots = roots
	}
	if f.batchSize > 0 {
		cfg.Reader.BatchSize = f.batchSize
	}
	if f.shardIndex >= 0 {
		cfg.Reader.ShardIndex = f.shardIndex
	}
	if f.shardCount > 0 {
		cfg.Reader.ShardCount = f.shardCount
	}
	if f.skip >= 0 {
		cfg.Reader.NumInstancesToSkip = f.skip
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, roots, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(f, roots)
	if err != nil {
		fmt.Fprintf(stderr, "omnibatch: %v\n", err)
		return 2
	}

	zl, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		fmt.Fprintf(stderr, "omnibatch: %v\n", err)
		return 2
	}
	defer func() { _ = zl.Sync() }()

	runID := uuid.NewString()
	logger := logging.Slog(zl).With(slog.String("run_id", runID))

	if err := execute(ctx, cfg, f, runID, logger, stdout); err != nil {
		logger.Error("run failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func loadConfig(f *flags, roots []string) (*config.Config, error) {
	cfg, err := config.Read(f.config)
	if err != nil {
		return nil, err
	}
	f.apply(cfg, roots)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute(ctx context.Context, cfg *config.Config, f *flags, runID string, logger *slog.Logger, stdout io.Writer) error {
	sources, closeStore, err := enumerateSources(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	fingerprint := fmt.Sprintf("%016x", enumerate.Fingerprint(sources))
	logger.Info("enumerated sources",
		slog.Int("sources", len(sources)),
		slog.String("fingerprint", fingerprint))

	if f.fingerprint {
		_, err := fmt.Fprintln(stdout, fingerprint)
		return err
	}

	params, err := cfg.Params()
	if err != nil {
		return err
	}

	checkpoint := reader.NewCheckpoint(params)
	opts := []reader.Option{reader.WithLogger(logger), reader.WithObserver(checkpoint)}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, reader.WithObserver(metrics.New(reg, params.ShardIndex())))

		stopMetrics := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer stopMetrics()
	}

	decoderOpts := []ndjson.Option{
		ndjson.WithValidation(cfg.Source.Validate),
		ndjson.WithRequiredFields(cfg.Source.RequiredFields...),
	}
	if cfg.Source.MaxLineSize > 0 {
		decoderOpts = append(decoderOpts, ndjson.WithBufferSize(cfg.Source.MaxLineSize))
	}

	core := reader.NewSourceReader(sources, ndjson.Decoder(decoderOpts...), reader.WithLogger(logger))
	defer func() { _ = core.Close() }()

	br, err := reader.NewDataReader(params, core, opts...)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(stdout)
	defer func() { _ = w.Flush() }()

	var batches, instances int
	for f.maxBatches == 0 || batches < f.maxBatches {
		b, err := br.ReadBatch(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := writeBatch(w, runID, b, f.withData); err != nil {
			return err
		}
		batches++
		instances += len(b.Real())
	}

	logger.Info("run complete",
		slog.Int("batches", batches),
		slog.Int("instances", instances),
		slog.Int64("resume_skip", checkpoint.NumInstancesToSkip()))
	return nil
}

func enumerateSources(ctx context.Context, cfg *config.Config) ([]omnibatch.Source, func(), error) {
	sourceOpts, err := cfg.SourceOptions()
	if err != nil {
		return nil, nil, err
	}
	rules, err := cfg.Filter()
	if err != nil {
		return nil, nil, err
	}
	opts := enumerate.Options{
		Pattern:       cfg.Source.Pattern,
		Predicate:     rules.Predicate(),
		SourceOptions: sourceOpts,
	}

	if cfg.Source.Store == "" {
		sources, err := enumerate.List(cfg.Source.Roots, opts)
		return sources, func() {}, err
	}

	// Store keys are not local paths; size and age rules cannot stat them.
	opts.Predicate = rules.PathOnly().MatchPath

	store, err := omnibatch.Open(cfg.Source.Store, cfg.Source.StoreConfig)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() { _ = store.Close() }

	sources, err := enumerate.ListStore(ctx, store, cfg.Source.Prefix, opts)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return sources, closeStore, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type batchRecord struct {
	RunID      string           `json:"run_id"`
	Index      int              `json:"batch_index"`
	Size       int              `json:"size"`
	Padded     bool             `json:"padded,omitempty"`
	NumPadding int              `json:"num_padding,omitempty"`
	Instances  []instanceRecord `json:"instances"`
}

type instanceRecord struct {
	Source   string `json:"source"`
	Position int64  `json:"position"`
	Ordinal  int64  `json:"ordinal"`
	Data     string `json:"data,omitempty"`
}

func writeBatch(w io.Writer, runID string, b *omnibatch.Batch, withData bool) error {
	rec := batchRecord{
		RunID:      runID,
		Index:      b.Index,
		Size:       b.Size(),
		Padded:     b.Padded,
		NumPadding: b.NumPadding,
		Instances:  make([]instanceRecord, len(b.Instances)),
	}
	for i, inst := range b.Instances {
		rec.Instances[i] = instanceRecord{
			Source:   inst.Source,
			Position: inst.Position,
			Ordinal:  inst.Ordinal,
		}
		if withData {
			rec.Instances[i].Data = string(inst.Data)
		}
	}

	line, err := sonic.Marshal(&rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}
