package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI stands in for an InfluxDB write API when none is configured.
// It keeps the points it is given so tests can look at them.
type MockWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
	Keep   bool
}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	if !m.Keep {
		return
	}
	m.mu.Lock()
	m.points = append(m.points, point)
	m.mu.Unlock()
}

// Points returns the points written so far when Keep is set.
func (m *MockWriteAPI) Points() []*write.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*write.Point(nil), m.points...)
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }
