package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/rfxcom2mqtt/internal/adapter/actor"
	"github.com/berfenger/rfxcom2mqtt/internal/adapter/sink"
	"github.com/berfenger/rfxcom2mqtt/internal/config"
	"github.com/berfenger/rfxcom2mqtt/internal/core/actor"
	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/internal/core/service"
	"github.com/berfenger/rfxcom2mqtt/internal/logging"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/internal/server"
	"github.com/berfenger/rfxcom2mqtt/internal/storage/gormrepo"
	"github.com/berfenger/rfxcom2mqtt/internal/storage/influx"
	"github.com/berfenger/rfxcom2mqtt/internal/storage/redis"
	"github.com/berfenger/rfxcom2mqtt/internal/util/actorutil"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(ctx context.Context, apiServer *http.Server, done chan bool) {
	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig(os.Args[1:])
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Logging)
	if err != nil {
		slog.Error("logger errors", "error", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("rfxcom2mqtt starting", zap.String("version", versioninfo.Short()))

	if err := run(cfg, logger); err != nil {
		logger.Error("rfxcom2mqtt stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serialPort, err := rfxcom.OpenSerial(rfxcom.SerialConfig{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout(),
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", cfg.Serial.Port, err)
	}
	defer serialPort.Close()

	rules, err := config.LoadRoutes(cfg.Routes.File, logger)
	if errors.Is(err, domain.ErrMissingConfig) {
		logger.Warn("no routes loaded", zap.Error(err))
	} else if err != nil {
		return err
	}
	router := service.NewTopicRouter(rules, logger)
	logger.Info("routes loaded", zap.Int("rules", len(rules)))

	// sensor catalog
	var repo *gormrepo.Repository
	var catalog port.SensorCatalog
	if cfg.Database.Enable {
		repo, err = gormrepo.Open(ctx, cfg.Database.DSN, logger)
		if err != nil {
			return err
		}
		defer repo.Close()
		catalog = repo
	}
	registry := service.NewSensorRegistry(catalog, logger)
	if catalog != nil {
		records, err := catalog.LoadSensors(ctx)
		if err != nil {
			logger.Warn("could not load sensor names", zap.Error(err))
		} else {
			registry.Preload(records)
		}
	}

	promRegistry := metrics.NewRegistry()
	appMetrics := metrics.NewAppMetrics(promRegistry)

	decoder := rfxcom.NewDecoder(rfxcom.DecoderOptions{
		Blacklist:              cfg.Decoder.Blacklist,
		UVTemperatureSubtype:   cfg.Decoder.UVTemperatureSubtype,
		WindTemperatureSubtype: cfg.Decoder.WindTemperatureSubtype,
	})
	reader := rfxcom.NewFrameReader(serialPort, cfg.Serial.ReadTimeout())

	if cfg.Detect.Enable {
		pipeline := service.NewPipeline(reader, decoder, registry, logger, service.WithMetrics(appMetrics))
		logger.Info("detecting sensors", zap.Duration("duration", cfg.Detect.Duration()))
		sensors, err := pipeline.Detect(ctx, cfg.Detect.Duration(), router)
		if err != nil {
			return err
		}
		fmt.Print(service.FormatDetectSummary(sensors))
		return nil
	}

	children, closeBackends, err := sinkActorProviders(cfg, repo, appMetrics, logger)
	if err != nil {
		return err
	}
	defer closeBackends()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	rootCtx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(children, logger)
	})
	pid, err := rootCtx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return err
	}
	defer func() {
		_ = rootCtx.StopFuture(pid).Wait()
		as.Shutdown()
	}()

	opts := []service.PipelineOption{service.WithMetrics(appMetrics)}
	if cfg.Database.Enable {
		opts = append(opts, service.WithNewSensorHook(sink.RegisterHook(rootCtx, pid)))
	}
	pipeline := service.NewPipeline(reader, decoder, registry, logger, opts...)

	var sinks []port.ReadingSink
	if cfg.MQTT.Enable || cfg.Redis.Enable {
		routeSink := sink.NewRouteSink(rootCtx, pid, router, cfg.MQTT.Retain)
		if cfg.MQTT.Enable && cfg.MQTT.HADiscoveryEnable {
			routeSink.WithDiscovery(registry)
		}
		sinks = append(sinks, routeSink)
	}
	if cfg.Database.Enable || cfg.Influx.Enable {
		sinks = append(sinks, sink.NewStoreSink(rootCtx, pid, registry))
	}
	if len(sinks) == 0 {
		logger.Warn("no sink enabled, readings are only logged")
		sinks = append(sinks, sink.NopSink{})
	}

	go func() {
		if err := pipeline.Run(ctx, sinks...); err != nil {
			logger.Error("pipeline stopped", zap.Error(err))
		}
		// end of stream or device gone, shut down
		stop()
	}()

	apiServer := server.NewServer(*cfg, rootCtx, pid, registry, promRegistry)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(ctx, apiServer, done)

	err = apiServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
	return nil
}

// sinkActorProviders opens the enabled backends. The returned func closes
// those not owned by an actor.
func sinkActorProviders(cfg *config.Config, repo *gormrepo.Repository, m *metrics.AppMetrics, logger *zap.Logger) (actor.Children, func(), error) {
	var children actor.Children
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.MQTT.Enable {
		provider := adactor.DefaultMQTTClientProvider(&cfg.MQTT)
		children.MQTT = func() *adactor.MQTTActor {
			return adactor.NewMQTTActor(&cfg.MQTT, provider, m, logger)
		}
		if cfg.MQTT.HADiscoveryEnable {
			children.HADiscovery = func(mqttActor *pactor.PID) *actor.HADiscoveryActor {
				return actor.NewHADiscoveryActor(&cfg.MQTT, mqttActor, logger)
			}
		}
	}
	if repo != nil {
		children.SQLStore = func() *adactor.StoreActor {
			return adactor.NewStoreActor(domain.ACTOR_ID_STORE_SQL, repo, repo, cfg.Sink, m, logger)
		}
	}
	if cfg.Influx.Enable {
		writer, err := influx.NewWriter(cfg.Influx)
		if err != nil {
			return children, closeAll, err
		}
		closers = append(closers, writer.Close)
		children.InfluxStore = func() *adactor.StoreActor {
			return adactor.NewStoreActor(domain.ACTOR_ID_STORE_INFLUX, writer, nil, cfg.Sink, m, logger)
		}
	}
	if cfg.Redis.Enable {
		children.Bus = func() *adactor.BusActor {
			publisher, err := redis.NewPublisher(cfg.Redis)
			if err != nil {
				// the supervisor restarts the actor
				panic(err)
			}
			return adactor.NewBusActor(publisher, cfg.Sink, m, logger)
		}
	}
	return children, closeAll, nil
}

func initConfig(args []string) (*config.Config, error) {

	// alias PORT => RFXCOM_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("RFXCOM_PORT", port)
	}

	v := viper.New()
	setConfigDefaults(v)

	flags := pflag.NewFlagSet("rfxcom2mqtt", pflag.ContinueOnError)
	configFile := flags.String("config", os.Getenv("CONFIG_FILE"), "YAML config file")
	flags.Bool("detect", false, "list the sensors heard during detect.duration_seconds and exit")
	flags.String("serial", "", "serial port of the receiver")
	flags.String("routes", "", "route file")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	for key, flag := range map[string]string{
		"detect.enable": "detect",
		"serial.port":   "serial",
		"routes.file":   "routes",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("rfxcom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := *configFile; cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			err = v.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch v.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud_rate", rfxcom.DEFAULT_BAUD_RATE)
	v.SetDefault("serial.read_timeout_millis", 1000)
	v.SetDefault("decoder.blacklist", []int{32, 33, 90})
	v.SetDefault("decoder.uv_temperature_subtype", 3)
	v.SetDefault("decoder.wind_temperature_subtype", 4)
	v.SetDefault("routes.file", "sensors.conf")
	v.SetDefault("detect.enable", false)
	v.SetDefault("detect.duration_seconds", 60)
	v.SetDefault("mqtt.enable", true)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "rfxcom")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.connect_retries", 5)
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("database.enable", false)
	v.SetDefault("database.dsn", "")
	v.SetDefault("influx.enable", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "org")
	v.SetDefault("influx.bucket", "weather")
	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "")
	v.SetDefault("sink.timeout_millis", 2000)
	v.SetDefault("sink.breaker_failures", 5)
	v.SetDefault("sink.breaker_open_seconds", 30)
	v.SetDefault("port", 8070)
	v.SetDefault("http_log", false)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Database.DSN = "*redacted*"
	cfg.Influx.Token = "*redacted*"
	cfg.Redis.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
