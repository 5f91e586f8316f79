// Package wire decodes messages received from devices and observers.
// Everything read here is untrusted.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/valyala/fastjson"

	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/signature"
)

// MaxFrameSize is the largest accepted frame in bytes.
const MaxFrameSize = 4 << 10

// Message types sent by devices.
const (
	TypeIdentify  = "identify"
	TypeTelemetry = "telemetry"
)

// Identify is the first message of a device session.
type Identify struct {
	Secret string
}

// Telemetry is a level report of a device.
type Telemetry struct {
	Secret    string
	Level     int
	Status    model.Status
	HasStatus bool
	RSSI      *int
	Signature string
}

// Payload returns the signed part of the message.
func (t Telemetry) Payload() signature.Payload {
	return signature.Payload{
		Level:  t.Level,
		Status: string(t.Status),
		RSSI:   t.RSSI,
	}
}

// DeviceMessage is a decoded device frame. Exactly one of Identify and
// Telemetry is set according to Type.
type DeviceMessage struct {
	Type      string
	Identify  Identify
	Telemetry Telemetry
}

var parsers fastjson.ParserPool

// ParseDeviceJSON decodes a text frame.
func ParseDeviceJSON(data []byte) (msg DeviceMessage, err error) {
	if len(data) > MaxFrameSize {
		return msg, model.ErrMalformed
	}

	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return msg, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}

	if v.Type() != fastjson.TypeObject {
		return msg, model.ErrMalformed
	}

	msg.Type = string(v.GetStringBytes("type"))
	switch msg.Type {
	case TypeIdentify:
		msg.Identify.Secret = string(v.GetStringBytes("secret"))
		if msg.Identify.Secret == "" {
			return msg, model.ErrMalformed
		}

		return msg, nil
	case TypeTelemetry:
		msg.Telemetry, err = telemetryJSON(v)
		return msg, err
	default:
		return msg, fmt.Errorf("%w: unknown type %q", model.ErrMalformed, msg.Type)
	}
}

func telemetryJSON(v *fastjson.Value) (t Telemetry, err error) {
	t.Secret = string(v.GetStringBytes("secret"))
	t.Signature = string(v.GetStringBytes("signature"))

	level := v.Get("level")
	if level == nil || level.Type() != fastjson.TypeNumber {
		return t, fmt.Errorf("%w: level is required", model.ErrMalformed)
	}

	if t.Level, err = level.Int(); err != nil {
		return t, fmt.Errorf("%w: level: %v", model.ErrMalformed, err)
	}

	if status := v.Get("status"); status != nil && status.Type() == fastjson.TypeString {
		t.Status = model.Status(status.GetStringBytes())
		t.HasStatus = true
	}

	if rssi := v.Get("rssi"); rssi != nil && rssi.Type() == fastjson.TypeNumber {
		n, err := rssi.Int()
		if err != nil {
			return t, fmt.Errorf("%w: rssi: %v", model.ErrMalformed, err)
		}
		t.RSSI = &n
	}

	return t, checkTelemetry(t)
}

func checkTelemetry(t Telemetry) error {
	if t.Secret == "" {
		return fmt.Errorf("%w: secret is required", model.ErrMalformed)
	}

	if t.Level < 0 || t.Level > 100 {
		return fmt.Errorf("%w: level %d out of range", model.ErrMalformed, t.Level)
	}

	return nil
}

type cborFrame struct {
	Type      string  `cbor:"type"`
	Secret    string  `cbor:"secret"`
	Level     *int    `cbor:"level"`
	Status    *string `cbor:"status"`
	RSSI      *int    `cbor:"rssi"`
	Signature string  `cbor:"signature"`
}

var cborDecoder = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  4,
		MaxArrayElements: 16,
		MaxMapPairs:      16,
		IndefLength:      cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}

	return dm
}()

// ParseDeviceCBOR decodes a binary frame. Keys and meaning match the
// JSON form.
func ParseDeviceCBOR(data []byte) (msg DeviceMessage, err error) {
	if len(data) > MaxFrameSize {
		return msg, model.ErrMalformed
	}

	var frame cborFrame
	if err = cborDecoder.Unmarshal(data, &frame); err != nil {
		return msg, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}

	msg.Type = frame.Type
	switch frame.Type {
	case TypeIdentify:
		if frame.Secret == "" {
			return msg, model.ErrMalformed
		}
		msg.Identify.Secret = frame.Secret

		return msg, nil
	case TypeTelemetry:
		if frame.Level == nil {
			return msg, fmt.Errorf("%w: level is required", model.ErrMalformed)
		}

		msg.Telemetry = Telemetry{
			Secret:    frame.Secret,
			Level:     *frame.Level,
			RSSI:      frame.RSSI,
			Signature: frame.Signature,
		}
		if frame.Status != nil {
			msg.Telemetry.Status = model.Status(*frame.Status)
			msg.Telemetry.HasStatus = true
		}

		return msg, checkTelemetry(msg.Telemetry)
	default:
		return msg, fmt.Errorf("%w: unknown type %q", model.ErrMalformed, frame.Type)
	}
}

// EncodeDeviceCBOR encodes a device message the way node firmware does.
// It is used by tools and tests.
func EncodeDeviceCBOR(msg DeviceMessage) ([]byte, error) {
	frame := cborFrame{Type: msg.Type}
	switch msg.Type {
	case TypeIdentify:
		frame.Secret = msg.Identify.Secret
	case TypeTelemetry:
		t := msg.Telemetry
		frame.Secret = t.Secret
		frame.Level = &t.Level
		frame.RSSI = t.RSSI
		frame.Signature = t.Signature
		if t.HasStatus {
			status := string(t.Status)
			frame.Status = &status
		}
	}

	return cbor.Marshal(frame)
}
