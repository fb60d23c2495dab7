package mididev

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for device sessions
type Metrics struct {
	// Short message counters
	ShortIn  atomic.Uint64 // Short messages received
	ShortOut atomic.Uint64 // Short messages sent

	// Long message counters
	LongIn  atomic.Uint64 // Long message transfers completed inbound
	LongOut atomic.Uint64 // Long message transfers completed outbound

	// Byte counters
	LongInBytes  atomic.Uint64 // Total long message bytes received
	LongOutBytes atomic.Uint64 // Total long message bytes sent

	// Error counters
	ShortErrors atomic.Uint64 // Invalid or unrecognized short messages
	LongErrors  atomic.Uint64 // Failed long message transfers

	// Buffer lifecycle counters
	Submits        atomic.Uint64 // Buffers handed to the driver
	Releases       atomic.Uint64 // Buffer descriptors reclaimed
	TeardownDrains atomic.Uint64 // Buffers reclaimed by teardown rather than the worker

	// Signal statistics
	SignalRaises    atomic.Uint64 // Completion wakes recorded
	SignalCoalesced atomic.Uint64 // Completion wakes dropped by the single-slot policy

	// Queue statistics
	QueueDepthTotal atomic.Uint64 // Cumulative queue depth samples
	QueueDepthCount atomic.Uint64 // Number of queue depth measurements
	MaxQueueDepth   atomic.Uint32 // Maximum observed queue depth

	// Session lifecycle
	StartTime atomic.Int64 // Session start timestamp (UnixNano)
	StopTime  atomic.Int64 // Session stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordShortMessage records a short message in the given direction
func (m *Metrics) RecordShortMessage(direction Direction, success bool) {
	if direction == DirectionInput {
		m.ShortIn.Add(1)
	} else {
		m.ShortOut.Add(1)
	}
	if !success {
		m.ShortErrors.Add(1)
	}
}

// RecordLongMessage records a completed long message transfer
func (m *Metrics) RecordLongMessage(direction Direction, bytes uint64, success bool) {
	if direction == DirectionInput {
		m.LongIn.Add(1)
		if success {
			m.LongInBytes.Add(bytes)
		}
	} else {
		m.LongOut.Add(1)
		if success {
			m.LongOutBytes.Add(bytes)
		}
	}
	if !success {
		m.LongErrors.Add(1)
	}
}

// RecordSubmit records a buffer handed to the driver
func (m *Metrics) RecordSubmit(Direction) {
	m.Submits.Add(1)
}

// RecordRelease records a reclaimed buffer descriptor
func (m *Metrics) RecordRelease(Direction) {
	m.Releases.Add(1)
}

// RecordTeardownDrain records buffers reclaimed during teardown
func (m *Metrics) RecordTeardownDrain(_ Direction, count uint32) {
	m.TeardownDrains.Add(uint64(count))
}

// RecordSignalRaise records a completion wake
func (m *Metrics) RecordSignalRaise(coalesced bool) {
	m.SignalRaises.Add(1)
	if coalesced {
		m.SignalCoalesced.Add(1)
	}
}

// RecordQueueDepth records current queue depth for statistics
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	// Update max queue depth atomically
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// Stop marks the session as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Message counts
	ShortIn  uint64
	ShortOut uint64
	LongIn   uint64
	LongOut  uint64

	// Bytes transferred
	LongInBytes  uint64
	LongOutBytes uint64

	// Error counts
	ShortErrors uint64
	LongErrors  uint64

	// Buffer lifecycle
	Submits        uint64
	Releases       uint64
	TeardownDrains uint64
	PendingBuffers uint64 // Submits minus reclaimed, at snapshot time

	// Signal statistics
	SignalRaises    uint64
	SignalCoalesced uint64

	// Queue statistics
	AvgQueueDepth float64
	MaxQueueDepth uint32

	// Computed statistics
	TotalMessages uint64
	TotalBytes    uint64
	UptimeNs      uint64
	MessageRate   float64 // Messages per second
	ErrorRate     float64 // Percentage of failed messages
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ShortIn:         m.ShortIn.Load(),
		ShortOut:        m.ShortOut.Load(),
		LongIn:          m.LongIn.Load(),
		LongOut:         m.LongOut.Load(),
		LongInBytes:     m.LongInBytes.Load(),
		LongOutBytes:    m.LongOutBytes.Load(),
		ShortErrors:     m.ShortErrors.Load(),
		LongErrors:      m.LongErrors.Load(),
		Submits:         m.Submits.Load(),
		Releases:        m.Releases.Load(),
		TeardownDrains:  m.TeardownDrains.Load(),
		SignalRaises:    m.SignalRaises.Load(),
		SignalCoalesced: m.SignalCoalesced.Load(),
		MaxQueueDepth:   m.MaxQueueDepth.Load(),
	}

	snap.TotalMessages = snap.ShortIn + snap.ShortOut + snap.LongIn + snap.LongOut
	snap.TotalBytes = snap.LongInBytes + snap.LongOutBytes

	reclaimed := snap.Releases + snap.TeardownDrains
	if snap.Submits > reclaimed {
		snap.PendingBuffers = snap.Submits - reclaimed
	}

	// Calculate average queue depth
	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	// Calculate uptime
	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		snap.MessageRate = float64(snap.TotalMessages) / (float64(snap.UptimeNs) / 1e9)
	}

	totalErrors := snap.ShortErrors + snap.LongErrors
	if snap.TotalMessages > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalMessages) * 100.0
	}

	return snap
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.ShortIn.Store(0)
	m.ShortOut.Store(0)
	m.LongIn.Store(0)
	m.LongOut.Store(0)
	m.LongInBytes.Store(0)
	m.LongOutBytes.Store(0)
	m.ShortErrors.Store(0)
	m.LongErrors.Store(0)
	m.Submits.Store(0)
	m.Releases.Store(0)
	m.TeardownDrains.Store(0)
	m.SignalRaises.Store(0)
	m.SignalCoalesced.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer interface allows pluggable metrics collection
type Observer interface {
	// ObserveShortMessage is called for each short message
	ObserveShortMessage(direction Direction, success bool)

	// ObserveLongMessage is called for each completed long message transfer
	ObserveLongMessage(direction Direction, bytes uint64, success bool)

	// ObserveSubmit is called when a buffer is handed to the driver
	ObserveSubmit(direction Direction)

	// ObserveRelease is called when a buffer descriptor is reclaimed
	ObserveRelease(direction Direction)

	// ObserveTeardownDrain is called with the number of buffers the
	// teardown path reclaimed instead of the worker
	ObserveTeardownDrain(direction Direction, count uint32)

	// ObserveSignalRaise is called for each completion wake; coalesced
	// reports whether the wake was dropped rather than recorded
	ObserveSignalRaise(coalesced bool)

	// ObserveQueueDepth is called with the queue depth after each submit
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveShortMessage(Direction, bool)         {}
func (NoOpObserver) ObserveLongMessage(Direction, uint64, bool)  {}
func (NoOpObserver) ObserveSubmit(Direction)                     {}
func (NoOpObserver) ObserveRelease(Direction)                    {}
func (NoOpObserver) ObserveTeardownDrain(Direction, uint32)      {}
func (NoOpObserver) ObserveSignalRaise(bool)                     {}
func (NoOpObserver) ObserveQueueDepth(uint32)                    {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveShortMessage(direction Direction, success bool) {
	o.metrics.RecordShortMessage(direction, success)
}

func (o *MetricsObserver) ObserveLongMessage(direction Direction, bytes uint64, success bool) {
	o.metrics.RecordLongMessage(direction, bytes, success)
}

func (o *MetricsObserver) ObserveSubmit(direction Direction) {
	o.metrics.RecordSubmit(direction)
}

func (o *MetricsObserver) ObserveRelease(direction Direction) {
	o.metrics.RecordRelease(direction)
}

func (o *MetricsObserver) ObserveTeardownDrain(direction Direction, count uint32) {
	o.metrics.RecordTeardownDrain(direction, count)
}

func (o *MetricsObserver) ObserveSignalRaise(coalesced bool) {
	o.metrics.RecordSignalRaise(coalesced)
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
