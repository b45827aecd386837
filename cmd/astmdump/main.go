package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"calmh.dev/astmprom/astm"
	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type CLI struct {
	File        string `arg:"" help:"Serial device or capture file to read"`
	JSON        bool   `help:"Print messages as JSON lines"`
	Catalog     string `help:"TOML file with additional test names"`
	Pushgateway string `help:"Pushgateway URL to push counters to when done" env:"ASTM_PUSHGATEWAY"`
	Instance    string `default:"analyzer" help:"Instance label for the pushgateway"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kong.Description("Decodes ASTM frames from a device or capture file."))
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	catalog := astm.NewCatalog(nil)
	if cli.Catalog != "" {
		var err error
		catalog, err = astm.LoadCatalog(cli.Catalog)
		kctx.FatalIfErrorf(err)
	}

	fd, err := os.Open(cli.File)
	kctx.FatalIfErrorf(err)
	defer fd.Close()

	c := newCounters()
	err = dump(os.Stdout, fd, astm.NewParser(catalog), cli.JSON, c)
	if err != nil {
		slog.Error("Reading", "file", cli.File, "error", err)
	}

	if cli.Pushgateway != "" {
		err := push.New(cli.Pushgateway, "astmdump").
			Grouping("instance", cli.Instance).
			Collector(c.messages).
			Collector(c.results).
			Push()
		if err != nil {
			slog.Error("Push", "error", err)
			os.Exit(1)
		}
	}
}

type counters struct {
	messages *prometheus.CounterVec
	results  *prometheus.CounterVec
}

func newCounters() *counters {
	return &counters{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "messages_total",
		}, []string{"category", "valid"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astm",
			Name:      "results_total",
		}, []string{"code", "test", "status"}),
	}
}

// dump prints every frame in r until EOF.
func dump(w io.Writer, r io.Reader, p *astm.Parser, asJSON bool, c *counters) error {
	framer := astm.NewFramer(r)
	enc := json.NewEncoder(w)
	for {
		text, err := framer.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		msg := p.Parse(text)
		c.messages.WithLabelValues(string(msg.Category), strconv.FormatBool(msg.Valid)).Inc()
		for _, res := range msg.Results {
			c.results.WithLabelValues(res.TestCode, res.TestName, res.Status).Inc()
		}

		if asJSON {
			if err := enc.Encode(msg); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "#%d %s\n", msg.ID, msg)
		for _, ev := range msg.Events() {
			if ev.Level == astm.LevelSuccess {
				continue
			}
			fmt.Fprintf(w, "  %-7s %s\n", ev.Level, ev.Text)
		}
	}
}
