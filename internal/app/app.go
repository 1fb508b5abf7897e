package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bigbluebutton/bbb-screen-recorder/internal"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/appstats"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/platform"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/pubsub"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/recorder"
	"github.com/bigbluebutton/bbb-screen-recorder/internal/server"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

var (
	app config.App

	flags struct {
		config  string
		dump    string
		debug   bool
		help    bool
		version bool
	}

	cfg     *config.Config
	ps      pubsub.PubSub
	pf      platform.Platform
	sv      *server.Server
	hs      *server.HTTPServer
	metrics *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	stopping     atomic.Bool
)

func init() {
	app.Name = internal.AppName
	app.Version = internal.AppVersion
	app.LongName = fmt.Sprintf("%s %s", app.Name, app.Version)
	app.InstanceId = uuid.New().String()

	flag.StringVarP(&flags.config, "config", "c", flags.config, "load configuration file")
	flag.StringVar(&flags.dump, "dump", "", "print config value (e.g. 'recorder.scratchDirectory')")
	flag.BoolVarP(&flags.debug, "debug", "d", flags.debug, "enable debug log")
	flag.BoolVarP(&flags.help, "help", "h", flags.help, "print help")
	flag.BoolVarP(&flags.version, "version", "v", flags.version, "print version")
}

// Main parses the command line and runs the recorder until it is signalled.
func Main() {
	flag.Parse()

	if flags.help {
		fmt.Printf("%s\n\n", app.LongName)
		flag.PrintDefaults()
		os.Exit(0)
	}

	if flags.version {
		fmt.Println(app.LongName)
		os.Exit(0)
	}

	if flags.dump != "" {
		log.SetLevel(log.FatalLevel)
		cfg = initConfig()
		loadConfig()
		dumpConfig()
	}

	Init()
	Run()
}

func Init() {
	cfg = initConfig()
	log.Infof("Starting %s PID: %d", app.Name, os.Getpid())
	loadConfig()
	configureLog()
	debugConfig()
	ctx, cancel = context.WithCancel(context.Background())
	sigintHandler()
	sighupHandler()
}

func Run() {
	appstats.Init()
	metrics = appstats.ServePromMetrics(cfg.Prometheus)

	if err := recorder.CheckScratchDirectory(cfg.Recorder); err != nil {
		log.Warnf("scratch storage unavailable, recordings will be kept in memory: %v", err)
		cfg.Recorder.UseScratchStorage = false
	}
	scratch, err := recorder.NewScratchFromConfig(cfg.Recorder)
	if err != nil {
		log.Fatalf("failed to set up scratch storage: %v", err)
	}
	if scratch != nil {
		if n, err := scratch.Sweep(); err != nil {
			log.Warnf("failed to sweep scratch directory %s: %v", scratch.Dir(), err)
		} else if n > 0 {
			log.Infof("removed %d stale scratch files from %s", n, scratch.Dir())
		}
	}

	if pf, err = platform.New(cfg.Platform); err != nil {
		log.Fatalf("failed to set up capture platform: %v", err)
	}

	if cfg.PubSub.Enable {
		if ps, err = pubsub.NewPubSub(cfg.PubSub); err != nil {
			log.Fatalf("failed to connect to pubsub: %v", err)
		}
	}

	sv = server.NewServer(ctx, cfg, ps, pf, scratch)

	serveHTTP()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("failed to notify readiness to systemd: %v", err)
	}

	if ps == nil {
		if err := sv.OnStart(); err != nil {
			log.Fatal(err)
		}
		<-ctx.Done()
		return
	}

	if err := ps.Subscribe(cfg.PubSub.Channels.Subscribe, sv.HandlePubSub, sv.OnStart); err != nil && !stopping.Load() {
		log.Errorf("failed to subscribe to pubsub %s: %s", cfg.PubSub.Channels.Subscribe, err)
		shutdown(1)
	}
	<-ctx.Done()
}

func shutdown(code int) {
	shutdownOnce.Do(func() {
		stopping.Store(true)
		if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
			log.Debugf("failed to notify systemd: %v", err)
		}

		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()

		if hs != nil {
			if err := hs.Shutdown(sctx); err != nil {
				log.Errorf("failed to close http server: %s", err)
			}
		}

		if ps != nil {
			if err := ps.Close(); err != nil {
				log.Errorf("failed to close pubsub: %s", err)
			}
		}

		if sv != nil {
			sv.Close()
		}

		if pf != nil {
			if err := pf.Close(); err != nil {
				log.Errorf("failed to close platform: %s", err)
			}
		}

		if metrics != nil {
			if err := metrics.Shutdown(sctx); err != nil {
				log.Errorf("failed to close metrics server: %s", err)
			}
		}

		if cancel != nil {
			cancel()
		}
	})

	os.Exit(code)
}

func sighupHandler() {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			log.Debug("reloading config...")
			loadConfig()
			configureLog()
		}
	}()
}

func sigintHandler() {
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		log.Info("shutting down")
		shutdown(0)
	}()
}
