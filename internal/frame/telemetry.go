package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"ahrsd/internal/ahrs"
)

// Telemetry payload types.
const (
	TypeAttitude byte = 0x01 // quaternion + tick timestamp
	TypeExtended byte = 0x02 // attitude + raw sensor vectors
)

const flagMagValid = 0x01

// Telemetry is the decoded form of an outbound payload. Gyro/Accel/Mag are
// only meaningful for TypeExtended.
type Telemetry struct {
	Type  byte
	Quat  ahrs.Quaternion
	Ticks ahrs.Ticks

	Gyro  ahrs.Vector3
	Accel ahrs.Vector3
	Mag   *ahrs.Vector3
}

// EncodeAttitude builds a TypeAttitude payload: type byte, quaternion
// (4 float32 LE, w x y z), tick timestamp (uint32 LE).
func EncodeAttitude(q ahrs.Quaternion, t ahrs.Ticks) []byte {
	out := make([]byte, 0, 21)
	out = append(out, TypeAttitude)
	out = appendQuat(out, q)
	out = binary.LittleEndian.AppendUint32(out, uint32(t))
	return out
}

// EncodeExtended builds a TypeExtended payload carrying the attitude plus
// the raw sample that produced it.
func EncodeExtended(q ahrs.Quaternion, s ahrs.SensorSample) []byte {
	out := make([]byte, 0, 58)
	out = append(out, TypeExtended)
	flags := byte(0)
	if s.Mag != nil {
		flags |= flagMagValid
	}
	out = append(out, flags)
	out = appendQuat(out, q)
	out = binary.LittleEndian.AppendUint32(out, uint32(s.Ticks))
	out = appendVec(out, s.Gyro)
	out = appendVec(out, s.Accel)
	if s.Mag != nil {
		out = appendVec(out, *s.Mag)
	} else {
		out = appendVec(out, ahrs.Vector3{})
	}
	return out
}

// DecodeTelemetry parses an outbound payload; the host-side counterpart of
// EncodeAttitude/EncodeExtended.
func DecodeTelemetry(p []byte) (Telemetry, error) {
	if len(p) == 0 {
		return Telemetry{}, fmt.Errorf("frame: empty telemetry payload")
	}
	switch p[0] {
	case TypeAttitude:
		if len(p) != 21 {
			return Telemetry{}, fmt.Errorf("frame: attitude payload length %d, want 21", len(p))
		}
		return Telemetry{
			Type:  TypeAttitude,
			Quat:  readQuat(p[1:]),
			Ticks: ahrs.Ticks(binary.LittleEndian.Uint32(p[17:])),
		}, nil
	case TypeExtended:
		if len(p) != 58 {
			return Telemetry{}, fmt.Errorf("frame: extended payload length %d, want 58", len(p))
		}
		t := Telemetry{
			Type:  TypeExtended,
			Quat:  readQuat(p[2:]),
			Ticks: ahrs.Ticks(binary.LittleEndian.Uint32(p[18:])),
			Gyro:  readVec(p[22:]),
			Accel: readVec(p[34:]),
		}
		if p[1]&flagMagValid != 0 {
			m := readVec(p[46:])
			t.Mag = &m
		}
		return t, nil
	}
	return Telemetry{}, fmt.Errorf("frame: unknown telemetry type 0x%02X", p[0])
}

func appendQuat(out []byte, q ahrs.Quaternion) []byte {
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(q.W))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(q.X))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(q.Y))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(q.Z))
	return out
}

func readQuat(p []byte) ahrs.Quaternion {
	return ahrs.Quaternion{
		W: math.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
		X: math.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(p[12:])),
	}
}

func appendVec(out []byte, v ahrs.Vector3) []byte {
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.X))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Y))
	out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Z))
	return out
}

func readVec(p []byte) ahrs.Vector3 {
	return ahrs.Vector3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(p[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
	}
}
