package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sensor_gateway/internal/broker"
	"sensor_gateway/internal/config"
	"sensor_gateway/internal/handlers"
	"sensor_gateway/internal/indicator"
	"sensor_gateway/internal/journal"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/metrics"
	"sensor_gateway/internal/models"
	"sensor_gateway/internal/network"
	"sensor_gateway/internal/packet"
	"sensor_gateway/internal/radio"
	"sensor_gateway/internal/radio/rfm69"
	"sensor_gateway/internal/repository"
	"sensor_gateway/internal/repository/db"
	"sensor_gateway/internal/server"
	"sensor_gateway/internal/service"
)

var errJournalNotOpen = errors.New("fault journal not open")

// gatewayApp opens the gateway's resources and runs it. It keeps whatever
// it opened so Close can release it no matter how far startup got.
type gatewayApp struct {
	cfg    *config.Config
	log    *logger.Logger
	bootID string

	openRadio func(*config.Config) (radio.Transport, *radio.Stub, error)

	faultJournal *journal.Journal
	sqlDB        *sql.DB
	transport    radio.Transport
	ledOut       *indicator.GPIOLine
	gw           *service.Gateway
	srv          *server.Server
}

func newGatewayApp(cfg *config.Config, log *logger.Logger, bootID string) *gatewayApp {
	return &gatewayApp{cfg: cfg, log: log, bootID: bootID, openRadio: openRadio}
}

// Record forwards to the fault journal once Run has opened it.
func (a *gatewayApp) Record(f models.Fault) error {
	if a.faultJournal == nil {
		return errJournalNotOpen
	}
	return a.faultJournal.Record(f)
}

// Run opens storage, hardware and the broker client, then serves until
// the gateway fails. Every setup error is returned to the caller.
func (a *gatewayApp) Run(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	// open storage
	fj, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open fault journal: %w", err)
	}
	a.faultJournal = fj

	sqlDB, err := openDB(cfg, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	a.sqlDB = sqlDB

	// hardware
	transport, stub, err := a.openRadio(cfg)
	if err != nil {
		return fmt.Errorf("open %s radio: %w", cfg.Radio.Driver, err)
	}
	a.transport = transport
	led, ledOut := openIndicator(cfg, log)
	a.ledOut = ledOut

	client, err := broker.New(broker.Config{
		Kind:     cfg.BrokerKind,
		Address:  cfg.BrokerAddress,
		Port:     cfg.BrokerPort,
		ClientID: cfg.BrokerClientID,
		Username: cfg.BrokerUsername,
		Password: cfg.BrokerPassword,
	})
	if err != nil {
		return fmt.Errorf("build broker client: %w", err)
	}

	var assoc network.Associator = network.Preconfigured{}
	if cfg.WifiManage {
		assoc = network.NewNMCLI(nil)
	}

	// wire dependencies
	key, _ := cfg.Key() // validated by Load
	repos := repository.NewRepository(sqlDB)
	m := metrics.New()
	a.gw = service.NewGateway(service.GatewayConfig{
		BootID:            a.bootID,
		WifiSSID:          cfg.WifiSSID,
		WifiPassword:      cfg.WifiPassword,
		Broker:            fmt.Sprintf("%s://%s:%d", cfg.BrokerKind, cfg.BrokerAddress, cfg.BrokerPort),
		LogTopic:          cfg.LogTopic,
		EncryptionKey:     key,
		AllowedTopics:     packet.NewAllowedTopics(cfg.AllowedTopics),
		PollTimeout:       cfg.Gateway.PollTimeout,
		BrokerLoopTimeout: cfg.Gateway.BrokerLoopTimeout,
		MemoryLimitMB:     cfg.Gateway.MemoryLimitMB,
	}, service.GatewayDeps{
		Radio:     transport,
		Broker:    client,
		Network:   assoc,
		Indicator: led,
		Events:    repos.EventRepo,
		Readings:  repos.ReadingRepo,
		Metrics:   m,
		Log:       log,
	})

	faultLog := service.NewFaultLogService(fj, repos.EventRepo, log)
	if _, err := faultLog.AnnounceLastFault(ctx); err != nil {
		log.Warnw("failed to announce previous fault", "err", err)
	}

	// status API
	if cfg.HTTP.Port != "" {
		a.srv = &server.Server{}
		services := service.NewService(repos, a.gw, fj, cfg.Auth.SigningKey, a.bootID)
		apiHandler := handlers.NewHandler(services, log).WithMetrics(m.Handler())
		runHTTPServer(a.srv, cfg.HTTP.Port, apiHandler, log)
	}

	if stub != nil && cfg.Simulator.Enabled {
		sim := service.NewSimulatorService(stub, cfg.Simulator.Topic, uint64(time.Now().UnixNano()), log)
		go sim.Run(ctx, cfg.Simulator.Interval)
	}

	return a.gw.Serve(ctx)
}

// Close releases what Run opened, in reverse order. The journal closes
// last so the fault that ended Run is already recorded.
func (a *gatewayApp) Close(ctx context.Context) error {
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.log.Warnw("http shutdown", "err", err)
		}
	}
	if a.gw != nil {
		_ = a.gw.Disconnect(ctx)
	}
	if a.ledOut != nil {
		_ = a.ledOut.Set(false)
		_ = a.ledOut.Close()
	}
	if a.transport != nil {
		_ = a.transport.Close()
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if a.faultJournal == nil {
		return nil
	}
	err := a.faultJournal.Close()
	a.faultJournal = nil
	return err
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	dbPath := cfg.DB.Path
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "gateway.db")
		dbPath = "gateway.db"
	}
	return db.InitDB(dbPath)
}

// openRadio returns the configured transport. The stub is also returned on
// its own so the simulator can feed it.
func openRadio(cfg *config.Config) (radio.Transport, *radio.Stub, error) {
	if cfg.Radio.Driver == config.DriverStub {
		stub := radio.NewStub(models.RadioInfo{FrequencyMHz: cfg.Radio.FrequencyMHz})
		return stub, stub, nil
	}
	r, err := rfm69.Open(rfm69.Config{
		SPIPort:      cfg.Radio.SPIPort,
		GPIOChip:     cfg.Radio.GPIOChip,
		ResetOffset:  cfg.Radio.ResetLine,
		FrequencyMHz: cfg.Radio.FrequencyMHz,
		NodeAddress:  byte(cfg.Radio.NodeAddress),
	})
	if err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

// openIndicator enables the activity LED only at debug level, and only
// requests the GPIO line in that case.
func openIndicator(cfg *config.Config, log *logger.Logger) (*indicator.Activity, *indicator.GPIOLine) {
	enabled := log.DebugEnabled() && cfg.Indicator.Line >= 0
	if !enabled {
		return indicator.New(indicator.Discard{}, false, cfg.Indicator.PulseWidth, time.Now, log), nil
	}
	line, err := indicator.OpenGPIOLine(cfg.Indicator.GPIOChip, cfg.Indicator.Line)
	if err != nil {
		log.Warnw("activity indicator unavailable", "chip", cfg.Indicator.GPIOChip, "line", cfg.Indicator.Line, "err", err)
		return indicator.New(indicator.Discard{}, false, cfg.Indicator.PulseWidth, time.Now, log), nil
	}
	return indicator.New(line, true, cfg.Indicator.PulseWidth, time.Now, log), line
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Errorw("error starting server", "err", err)
		}
	}()
}
