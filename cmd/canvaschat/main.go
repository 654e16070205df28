package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/namikmesic/canvas-stream/internal/chat"
	"github.com/namikmesic/canvas-stream/internal/config"
	"github.com/namikmesic/canvas-stream/internal/jetstream"
	"github.com/namikmesic/canvas-stream/internal/processor"
	"github.com/namikmesic/canvas-stream/internal/session"
	"github.com/namikmesic/canvas-stream/internal/storage"
	"github.com/namikmesic/canvas-stream/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var writer *storage.BatchWriter
	if cfg.DatabaseURL != "" {
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := storage.RunMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		writer = storage.NewBatchWriter(pool, cfg.WriterBufferSize, cfg.WriterBatchSize, cfg.WriterFlushMs)
		defer writer.Shutdown()
	}

	out := newPrinter(os.Stdout)
	conv := chat.NewConversation()
	conv.Observe(out.Observe)

	opts := session.Options{
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		ReadTimeout:  cfg.ReadTimeout,
		Sink:         session.SentenceFunc(out.Sentence),
	}

	if cfg.NATSStoreDir != "" {
		natsServer, err := jetstream.NewServer(cfg.NATSStoreDir)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start embedded NATS")
		}
		defer natsServer.Shutdown()

		nc, err := natsServer.Connect()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to embedded NATS")
		}
		defer nc.Drain()

		js, err := nc.JetStream()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get JetStream context")
		}
		if err := jetstream.EnsureStreams(js); err != nil {
			log.Fatal().Err(err).Msg("failed to create JetStream streams")
		}

		pub := jetstream.NewPublisher(js)
		opts.Recorder = pub
		opts.Sink = fanOut{opts.Sink, pub}

		if writer != nil {
			proc := processor.New(writer)
			consumerCtx, consumerCancel := context.WithCancel(context.Background())
			consumerDone := make(chan struct{})
			go func() {
				defer close(consumerDone)
				if err := proc.StartConsumer(consumerCtx, js); err != nil {
					log.Error().Err(err).Msg("telemetry consumer stopped")
				}
			}()
			// Runs before the deferred writer shutdown so the last jobs are flushed.
			defer func() {
				consumerCancel()
				<-consumerDone
			}()
		}
	}

	client, err := transport.NewClient(cfg.ChatEndpoint, cfg.ClientID, cfg.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid chat endpoint")
	}
	streamer := session.NewStreamer(client, transport.StaticToken(cfg.UserToken), conv, opts)

	log.Info().
		Str("endpoint", cfg.ChatEndpoint).
		Str("model", cfg.Model).
		Bool("archive", opts.Recorder != nil).
		Bool("telemetry", writer != nil).
		Msg("canvaschat started")

	if err := repl(ctx, streamer, os.Stdin, out); err != nil {
		log.Error().Err(err).Msg("input error")
	}

	streamer.Cancel()
	if sess := streamer.Active(); sess != nil {
		<-sess.Done()
	}
	log.Info().Msg("shutdown complete")
}

// fanOut delivers each sentence to every sink.
type fanOut []session.SentenceSink

func (f fanOut) Sentence(streamID, sentence string) {
	for _, s := range f {
		s.Sentence(streamID, sentence)
	}
}
