package mocks

import (
	"io"

	"mediarelay/shared/handler"

	"github.com/stretchr/testify/mock"
)

// MockStream is a mock implementation of handler.Stream.
type MockStream struct {
	mock.Mock
}

var _ handler.Stream = (*MockStream)(nil)

// WriteTo mocks the WriteTo method
func (m *MockStream) WriteTo(w io.Writer) (int64, error) {
	args := m.Called(w)
	return args.Get(0).(int64), args.Error(1)
}

// Close mocks the Close method
func (m *MockStream) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ChunkStream is a handler.Stream that writes fixed chunks and records
// whether it was closed. It is handy in adapter tests that need real bytes.
type ChunkStream struct {
	Chunks [][]byte
	Err    error
	Closed int
}

// WriteTo writes every chunk in order, then returns Err.
func (s *ChunkStream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, c := range s.Chunks {
		n, err := w.Write(c)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, s.Err
}

// Close counts calls.
func (s *ChunkStream) Close() error {
	s.Closed++
	return nil
}
