// Command dmxpctl is the operator CLI for a DMXP region: attach, list
// channels, inspect a channel, send/receive one message, snapshot
// every channel to disk, or ask a running dmxpd daemon to externally
// recover a channel. Config is loaded with an env var override for the
// region path, with terse one-line operational logging and GNU-style
// subcommand flags.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	atomicfile "github.com/natefinch/atomic"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/neerajchowdary889/DMXP-MPMC/bus"
	"github.com/neerajchowdary889/DMXP-MPMC/config"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/ctl"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/logx"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to a TOML config file")
		path      = flag.String("path", "", "override the region file path")
		channel   = flag.Uint32("channel", 0, "channel id")
		timeout   = flag.Duration("timeout", 0, "recv timeout; 0 = non-blocking, <0 = block forever")
		payload   = flag.String("payload", "", "payload bytes for send, as a raw string")
		out       = flag.String("out", "", "output file for dump (defaults to stdout)")
		logLevel  = flag.String("log-level", "", "override the configured log level")
		logPretty = flag.Bool("pretty", false, "human-readable console logging")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dmxpctl: load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg = config.LoadEnv(cfg, os.Getenv("DMXP_ENV_FILE"))
	if *path != "" {
		cfg.RegionPath = *path
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logPretty {
		cfg.Log.Pretty = true
	}
	if !flag.CommandLine.Changed("timeout") {
		*timeout = cfg.DefaultTimeout
	}

	logger := logx.New(logx.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, "dmxpctl")

	// Busy-spin commands (recv with a short/zero timeout) benefit from a
	// GOMAXPROCS that reflects the container's real cgroup quota rather
	// than the host's core count.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("automaxprocs: could not adjust GOMAXPROCS")
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: dmxpctl [flags] <attach|list|info|send|recv|dump|reset> [args]")
		os.Exit(2)
	}
	cmd := args[0]

	var err error
	switch cmd {
	case "attach":
		err = runAttach(cfg, logger)
	case "list":
		err = runList(cfg, logger)
	case "info":
		err = runInfo(cfg, logger, *channel)
	case "send":
		err = runSend(cfg, logger, *channel, []byte(*payload))
	case "recv":
		err = runRecv(cfg, logger, *channel, *timeout)
	case "dump":
		err = runDump(cfg, logger, *out)
	case "reset":
		err = runReset(cfg, logger, *channel)
	default:
		fmt.Fprintf(os.Stderr, "dmxpctl: unknown subcommand %q\n", cmd)
		os.Exit(2)
	}

	if err != nil {
		logger.Error().Err(err).Str("subcommand", cmd).Msg("dmxpctl: command failed")
		os.Exit(1)
	}
}

func runAttach(cfg config.Config, logger zerolog.Logger) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()
	ids := b.ListChannels()
	logger.Info().Str("path", cfg.RegionPath).Int("channels", len(ids)).Msg("attach ok")
	return nil
}

func runList(cfg config.Config, logger zerolog.Logger) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	return json.NewEncoder(os.Stdout).Encode(b.ListChannels())
}

func runInfo(cfg config.Config, logger zerolog.Logger, channelID uint32) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	info, ok := b.ChannelInfo(channelID)
	if !ok {
		return bus.ErrUnknownChannel
	}
	return json.NewEncoder(os.Stdout).Encode(info)
}

func runSend(cfg config.Config, logger zerolog.Logger, channelID uint32, payload []byte) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.NewProducer(channelID)
	if err != nil {
		return err
	}
	if err := p.Send(payload); err != nil {
		return err
	}
	logger.Info().Uint32("channel_id", channelID).Int("bytes", len(payload)).Msg("sent")
	return nil
}

func runRecv(cfg config.Config, logger zerolog.Logger, channelID uint32, timeout time.Duration) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	c, err := b.NewConsumer(channelID, bus.WithConsumerLogger(logger))
	if err != nil {
		return err
	}
	payload, meta, err := c.Receive(timeout)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(struct {
		Meta    any    `json:"meta"`
		Payload string `json:"payload"`
	}{Meta: meta, Payload: string(payload)})
}

// runDump snapshots every channel's ChannelInfo to a JSON file, written
// via an atomic rename (natefinch/atomic) so a concurrent reader of the
// output path never observes a half-written file.
func runDump(cfg config.Config, logger zerolog.Logger, outPath string) error {
	b, err := bus.Attach(cfg.RegionPath, bus.WithLogger(logger))
	if err != nil {
		return err
	}
	defer b.Close()

	ids := b.ListChannels()
	snapshot := make([]bus.ChannelInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := b.ChannelInfo(id); ok {
			snapshot = append(snapshot, info)
		}
	}

	encoded, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	if outPath == "" {
		_, err := os.Stdout.Write(append(encoded, '\n'))
		return err
	}
	logger.Info().Str("path", outPath).Int("channels", len(snapshot)).Msg("dump written")
	return atomicfile.WriteFile(outPath, bytes.NewReader(encoded))
}

func runReset(cfg config.Config, logger zerolog.Logger, channelID uint32) error {
	client := ctl.NewClient(cfg.Control.SocketPath, logger)
	defer client.Close()

	resp, err := client.Reset(channelID)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("dmxpd: reset channel %d: %s", channelID, resp.Error)
	}
	logger.Info().Uint32("channel_id", channelID).Msg("reset ok")
	return nil
}
