package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// persistentMetrics creates counters whose totals are kept in leveldb so
// they survive restarts.
type persistentMetrics struct {
	db      *leveldb.DB
	factory promauto.Factory
}

// openPersistentMetrics opens the state database at path, or an in-memory
// one when path is empty.
func openPersistentMetrics(path string, reg prometheus.Registerer) (*persistentMetrics, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open state %q: %w", path, err)
	}
	return &persistentMetrics{db: db, factory: promauto.With(reg)}, nil
}

func (p *persistentMetrics) Close() error {
	return p.db.Close()
}

func metricKey(opts prometheus.CounterOpts) string {
	return fmt.Sprintf("%s_%s_%s\x00", opts.Namespace, opts.Subsystem, opts.Name)
}

func (p *persistentMetrics) NewCounterVec(opts prometheus.CounterOpts, labels []string) *persistentCounterVec {
	cv := p.factory.NewCounterVec(opts, labels)
	totals := make(map[string]float64)

	baseKey := metricKey(opts)
	it := p.db.NewIterator(util.BytesPrefix([]byte(baseKey)), nil)
	defer it.Release()
	for it.Next() {
		_, labelsPart, _ := strings.Cut(string(it.Key()), "\x00")
		val := math.Float64frombits(binary.BigEndian.Uint64(it.Value()))
		slog.Debug("restoring", "name", opts.Name, "labels", labelsPart, "val", val)
		cv.WithLabelValues(splitLabels(labelsPart, len(labels))...).Add(val)
		totals[labelsPart] = val
	}

	return &persistentCounterVec{pm: p, baseKey: baseKey, cv: cv, totals: totals}
}

func (p *persistentMetrics) NewCounter(opts prometheus.CounterOpts) *persistentCounter {
	return &persistentCounter{p.NewCounterVec(opts, nil)}
}

func splitLabels(s string, n int) []string {
	if n == 0 {
		return nil
	}
	return strings.SplitN(s, "\x01", n)
}

func (p *persistentMetrics) store(key string, value float64) {
	var valBytes [8]byte
	binary.BigEndian.PutUint64(valBytes[:], math.Float64bits(value))
	if err := p.db.Put([]byte(key), valBytes[:], nil); err != nil {
		slog.Warn("storing counter", "key", key, "error", err)
	}
}

type persistentCounterVec struct {
	pm      *persistentMetrics
	baseKey string
	cv      *prometheus.CounterVec

	mut    sync.Mutex
	totals map[string]float64
}

func (p *persistentCounterVec) Inc(labelValues ...string) {
	p.Add(1, labelValues...)
}

func (p *persistentCounterVec) Add(delta float64, labelValues ...string) {
	p.cv.WithLabelValues(labelValues...).Add(delta)

	labelsPart := strings.Join(labelValues, "\x01")
	p.mut.Lock()
	total := p.totals[labelsPart] + delta
	p.totals[labelsPart] = total
	p.mut.Unlock()

	p.pm.store(p.baseKey+labelsPart, total)
}

// Value returns the total for the given labels, including restored state.
func (p *persistentCounterVec) Value(labelValues ...string) float64 {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.totals[strings.Join(labelValues, "\x01")]
}

type persistentCounter struct {
	vec *persistentCounterVec
}

func (p *persistentCounter) Inc() {
	p.vec.Inc()
}

func (p *persistentCounter) Value() float64 {
	return p.vec.Value()
}
