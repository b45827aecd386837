package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calmh.dev/astmprom/astm"
	"github.com/alecthomas/kong"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thejerf/suture/v4"
)

type CLI struct {
	Serial   string `help:"Serial port of the analyzer" env:"ASTM_SERIAL" xor:"source"`
	Baud     int    `default:"9600" help:"Serial baud rate"`
	DataBits int    `default:"8" help:"Serial data bits"`
	Parity   string `default:"none" enum:"none,odd,even,mark,space" help:"Serial parity"`
	StopBits string `default:"1" enum:"1,1.5,2" help:"Serial stop bits"`
	Addr     string `help:"Address of a serial-to-TCP bridge" env:"ASTM_ADDR" xor:"source"`

	Listen  string `default:"0.0.0.0:2116" help:"HTTP listener address"`
	Forward string `help:"Listen address for the JSON message stream" env:"ASTM_FORWARD"`
	History int    `default:"100" help:"Number of messages kept for the HTTP API"`
	State   string `help:"Directory for persistent counters (in memory if empty)" env:"ASTM_STATE"`
	Catalog string `help:"TOML file with additional test names" env:"ASTM_CATALOG"`

	LogLevel string `default:"info" enum:"debug,info,warn,error" help:"Log level"`

	MQTTBroker   string `help:"MQTT broker address" env:"MQTT_BROKER"`
	MQTTClientID string `help:"MQTT client ID" env:"MQTT_CLIENT_ID"`
	MQTTUsername string `help:"MQTT username" default:"" env:"MQTT_USERNAME"`
	MQTTPassword string `help:"MQTT password" default:"" env:"MQTT_PASSWORD"`
	MQTTPrefix   string `help:"MQTT topic prefix" default:"astm" env:"MQTT_PREFIX"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Description("Receives ASTM messages from a clinical chemistry analyzer and exports them."))

	log := newLogger(os.Stderr, parseLevel(cli.LogLevel))
	slog.SetDefault(log)

	src, err := cli.source()
	kctx.FatalIfErrorf(err)

	catalog := astm.NewCatalog(nil)
	if cli.Catalog != "" {
		catalog, err = astm.LoadCatalog(cli.Catalog)
		kctx.FatalIfErrorf(err)
		log.Info("Loaded test catalog", "file", cli.Catalog, "tests", catalog.Len())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pm, err := openPersistentMetrics(cli.State, reg)
	kctx.FatalIfErrorf(err)
	defer pm.Close()
	m := newMetrics(pm, reg)

	messages := newFanout[*received](m.fanoutDropped.Inc)
	hist := newHistory(cli.History, messages)

	main := suture.New("main", suture.Spec{
		EventHook: func(ev suture.Event) {
			log.Warn("Supervisor", "event", ev.String())
		},
		FailureBackoff: 5 * time.Second,
	})
	main.Add(&reader{src: src, catalog: catalog, metrics: m, messages: messages, log: log})
	main.Add(hist)
	main.Add(&httpService{addr: cli.Listen, handler: newRouter(hist, reg), log: log})
	if cli.Forward != "" {
		main.Add(&forwarder{addr: cli.Forward, messages: messages, log: log})
	}
	if cli.MQTTBroker != "" {
		main.Add(newMQTTPublisher(&cli, messages, log))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := main.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Exiting", "error", err)
	}
}

func (cli *CLI) source() (source, error) {
	switch {
	case cli.Serial != "":
		return newSerialSource(cli.Serial, cli.Baud, cli.DataBits, cli.Parity, cli.StopBits)
	case cli.Addr != "":
		return &tcpSource{addr: cli.Addr, timeout: time.Minute}, nil
	default:
		return nil, errNoSource
	}
}

func newRouter(hist *history, reg *prometheus.Registry) http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.GET("/messages", hist.handleList)
	router.GET("/messages/:id", hist.handleGet)
	return router
}

type httpService struct {
	addr    string
	handler http.Handler
	log     *slog.Logger
}

func (s *httpService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("Serving HTTP", "listen", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *httpService) String() string {
	return "http " + s.addr
}
