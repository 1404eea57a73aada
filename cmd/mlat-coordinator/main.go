// Command mlat-coordinator runs the multilateration coordination core as a
// standalone process: it loads configuration, wires up structured logging
// and an optional result telemetry publisher, and hands both to a
// coordinator.Coordinator until told to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/flyitalyadsb/mlat-coordinator/internal/config"
	"github.com/flyitalyadsb/mlat-coordinator/internal/coordinator"
	"github.com/flyitalyadsb/mlat-coordinator/internal/telemetry"
)

var profileDump bool

func main() {
	var flags struct {
		workDir             string
		tag                 string
		partitionIndex      int
		partitionCount      int
		maxSyncAircraft     int
		maxSyncRate         float64
		metersToFeet        float64
		forceMlatIntervalS  int
		noAdsbMlatSecondsS  int
		stateDumpIntervalS  int
		profileDumpInterval int
		handshakeLogPath    string
		handshakeLogMaxMB   int
		handshakeLogBackups int
		amqpURL             string
		amqpExchange        string
		verbose             bool
	}

	def := config.Defaults()

	rootCmd := &cobra.Command{
		Use:   "mlat-coordinator",
		Short: "Mode S multilateration coordination core",
		Long: `mlat-coordinator runs the receiver/aircraft interest graph, sync and
mlat selection policy, clock-quality scorer, result fan-out, and state
dumper for one partition of a multilateration server.

It owns no wire protocol, clock-pairing math, or position solver itself;
those are expected to be supplied by a wrapping process through the
coordinator package's interfaces.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				WorkDir:             flags.workDir,
				Tag:                 flags.tag,
				PartitionIndex:      flags.partitionIndex,
				PartitionCount:      flags.partitionCount,
				MaxSyncAircraft:     flags.maxSyncAircraft,
				MaxSyncRate:         flags.maxSyncRate,
				MetersToFeet:        flags.metersToFeet,
				ForceMlatInterval:   secondsToDuration(flags.forceMlatIntervalS),
				NoAdsbMlatSeconds:   secondsToDuration(flags.noAdsbMlatSecondsS),
				StateDumpInterval:   secondsToDuration(flags.stateDumpIntervalS),
				ProfileDumpInterval: secondsToDuration(flags.profileDumpInterval),
				HandshakeLogPath:    flags.handshakeLogPath,
				HandshakeLogMaxMB:   flags.handshakeLogMaxMB,
				HandshakeLogBackups: flags.handshakeLogBackups,
				AMQPURL:             flags.amqpURL,
				AMQPExchange:        flags.amqpExchange,
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log := newLogger(flags.verbose)
			handshakeLog := newHandshakeLogger(cfg)

			telemetryPub, err := telemetry.Dial(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				return fmt.Errorf("dial telemetry broker: %w", err)
			}
			defer telemetryPub.Close()

			coord := coordinator.New(cfg, log, handshakeLog)
			coord.Telemetry = telemetryPub

			coord.Start(profileDump)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

			for sig := range sigCh {
				if sig == syscall.SIGHUP {
					log.Info("received SIGHUP, reloading")
					coord.Reload()
					continue
				}
				log.WithField("signal", sig).Info("shutting down")
				break
			}

			coord.Close()
			coord.WaitClosed()
			return nil
		},
	}

	flagSet := rootCmd.Flags()
	flagSet.StringVar(&flags.workDir, "work-dir", def.WorkDir, "directory the state-dump JSON files are written to")
	flagSet.StringVar(&flags.tag, "tag", def.Tag, "process-title tag")
	flagSet.IntVar(&flags.partitionIndex, "partition-index", def.PartitionIndex, "1-based index of this partition")
	flagSet.IntVar(&flags.partitionCount, "partition-count", def.PartitionCount, "total number of partitions")
	flagSet.IntVar(&flags.maxSyncAircraft, "max-sync-aircraft", def.MaxSyncAircraft, "cap on sync-interest aircraft per receiver")
	flagSet.Float64Var(&flags.maxSyncRate, "max-sync-rate", def.MaxSyncRate, "cap on the cumulative message rate the sync-aware selector budgets per receiver")
	flagSet.Float64Var(&flags.metersToFeet, "meters-to-feet", def.MetersToFeet, "conversion factor used when dumping altitudes")
	flagSet.IntVar(&flags.forceMlatIntervalS, "force-mlat-interval", int(def.ForceMlatInterval.Seconds()), "seconds between forced mlat windows, per aircraft")
	flagSet.IntVar(&flags.noAdsbMlatSecondsS, "no-adsb-mlat-seconds", int(def.NoAdsbMlatSeconds.Seconds()), "seconds without ADS-B before mlat is wanted")
	flagSet.IntVar(&flags.stateDumpIntervalS, "state-dump-interval", int(def.StateDumpInterval.Seconds()), "seconds between state-dump passes")
	flagSet.IntVar(&flags.profileDumpInterval, "profile-dump-interval", int(def.ProfileDumpInterval.Seconds()), "seconds between memory-profile snapshots")
	flagSet.StringVar(&flags.handshakeLogPath, "handshake-log-path", def.HandshakeLogPath, "path to the rotated handshake log (relative paths are resolved against --work-dir)")
	flagSet.IntVar(&flags.handshakeLogMaxMB, "handshake-log-max-mb", def.HandshakeLogMaxMB, "handshake log rotation size, in megabytes")
	flagSet.IntVar(&flags.handshakeLogBackups, "handshake-log-backups", def.HandshakeLogBackups, "handshake log backups to retain")
	flagSet.StringVar(&flags.amqpURL, "amqp-url", def.AMQPURL, "AMQP broker URL for result telemetry (empty disables it)")
	flagSet.StringVar(&flags.amqpExchange, "amqp-exchange", def.AMQPExchange, "AMQP fanout exchange for result telemetry")
	flagSet.BoolVar(&flags.verbose, "verbose", false, "debug-level logging")
	flagSet.BoolVar(&profileDump, "enable-profile-dump", false, "write periodic memory-profile snapshots")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mlat-coordinator: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

func newHandshakeLogger(cfg config.Config) *logrus.Logger {
	path := cfg.HandshakeLogPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.WorkDir, path)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.HandshakeLogMaxMB,
		MaxBackups: cfg.HandshakeLogBackups,
	})
	return log
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
