// Package metric publishes render counters with expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/sequencer/signal"
)

const componentsLabel = "sequencer.components"

const (
	// BlockCounter measures number of rendered blocks.
	BlockCounter = "Blocks"
	// SampleCounter measures number of rendered frames.
	SampleCounter = "Samples"
	// RenderCounter is the time spent rendering the last block.
	RenderCounter = "Render"
	// DurationCounter counts the duration of rendered signal.
	DurationCounter = "Duration"
	// OverrunCounter counts blocks rendered slower than real time.
	OverrunCounter = "Overruns"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		BlockCounter,
		SampleCounter,
		RenderCounter,
		DurationCounter,
		OverrunCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when a block is rendered.
type MeasureFunc func(frames int64, elapsed time.Duration)

// Meter creates new meter closure to capture component counters.
func Meter(component interface{}, sampleRate int) MeasureFunc {
	t := getType(component)
	metric := components.get(t)
	metric.components.Add(1)
	var (
		frames        int64
		blockDuration time.Duration
	)
	return func(s int64, elapsed time.Duration) {
		metric.render.set(elapsed)
		metric.blocks.Add(1)
		metric.samples.Add(s)
		// recalculate block duration only when block size has changed
		if frames != s {
			frames = s
			blockDuration = signal.DurationOf(sampleRate, s)
		}
		metric.duration.add(blockDuration)
		if elapsed > blockDuration {
			metric.overruns.Add(1)
		}
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		return metric
	}
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	blocks     *expvar.Int
	samples    *expvar.Int
	overruns   *expvar.Int
	render     *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		blocks:     expvar.NewInt(key(componentType, BlockCounter)),
		samples:    expvar.NewInt(key(componentType, SampleCounter)),
		overruns:   expvar.NewInt(key(componentType, OverrunCounter)),
		render:     &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, RenderCounter), m.render)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%v", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
