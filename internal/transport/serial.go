package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// SerialPort is the USB CDC channel. The read timeout is kept near zero so
// TryRead returns immediately with whatever the driver has buffered.
type SerialPort struct {
	port serial.Port
	name string
}

func OpenSerial(name string, baudRate int) (*SerialPort, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", name, err)
	}
	// Drop whatever accumulated while nobody was reading.
	_ = port.ResetInputBuffer()
	return &SerialPort{port: port, name: name}, nil
}

func (s *SerialPort) TryWrite(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.port.Write(p)
}

func (s *SerialPort) TryRead(p []byte) (int, error) {
	// go.bug.st/serial returns n=0, err=nil when the timeout expires.
	return s.port.Read(p)
}

func (s *SerialPort) Close() error {
	if s == nil || s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
