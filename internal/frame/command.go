package frame

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Opcode identifies an inbound host command.
type Opcode byte

const (
	// OpResetOrientation discards the orientation estimate; no arguments.
	OpResetOrientation Opcode = 0x10
	// OpSetRate changes the output/sample rate; argument uint16 Hz.
	OpSetRate Opcode = 0x11
	// OpCalibrateBias starts a stationary gyro bias capture; argument
	// uint16 sample count.
	OpCalibrateBias Opcode = 0x12
	// OpSetGain sets the steady-state fusion gain; argument float32.
	OpSetGain Opcode = 0x13
	// OpSetTelemetry selects the outbound payload type; argument uint8
	// (TypeAttitude or TypeExtended).
	OpSetTelemetry Opcode = 0x14
)

// Command is a decoded host instruction. Only the field matching Op is
// meaningful. Commands are applied on the next tick boundary and dropped.
type Command struct {
	Op Opcode

	RateHz    uint16
	BiasCount uint16
	Gain      float32
	Telemetry byte
}

// ParseCommand decodes an inbound frame payload. Length mismatches and
// unknown opcodes are reported as errors; callers treat them like corrupt
// frames (count and continue).
func ParseCommand(p []byte) (Command, error) {
	if len(p) == 0 {
		return Command{}, fmt.Errorf("frame: empty command payload")
	}
	op := Opcode(p[0])
	args := p[1:]
	switch op {
	case OpResetOrientation:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("frame: reset takes no arguments, got %d bytes", len(args))
		}
		return Command{Op: op}, nil
	case OpSetRate:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("frame: set-rate wants 2 argument bytes, got %d", len(args))
		}
		return Command{Op: op, RateHz: binary.LittleEndian.Uint16(args)}, nil
	case OpCalibrateBias:
		if len(args) != 2 {
			return Command{}, fmt.Errorf("frame: calibrate wants 2 argument bytes, got %d", len(args))
		}
		return Command{Op: op, BiasCount: binary.LittleEndian.Uint16(args)}, nil
	case OpSetGain:
		if len(args) != 4 {
			return Command{}, fmt.Errorf("frame: set-gain wants 4 argument bytes, got %d", len(args))
		}
		return Command{Op: op, Gain: math.Float32frombits(binary.LittleEndian.Uint32(args))}, nil
	case OpSetTelemetry:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("frame: set-telemetry wants 1 argument byte, got %d", len(args))
		}
		return Command{Op: op, Telemetry: args[0]}, nil
	}
	return Command{}, fmt.Errorf("frame: unknown opcode 0x%02X", p[0])
}

// EncodeCommand builds the payload for cmd; the host-side counterpart of
// ParseCommand.
func EncodeCommand(cmd Command) []byte {
	out := []byte{byte(cmd.Op)}
	switch cmd.Op {
	case OpSetRate:
		out = binary.LittleEndian.AppendUint16(out, cmd.RateHz)
	case OpCalibrateBias:
		out = binary.LittleEndian.AppendUint16(out, cmd.BiasCount)
	case OpSetGain:
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(cmd.Gain))
	case OpSetTelemetry:
		out = append(out, cmd.Telemetry)
	}
	return out
}
