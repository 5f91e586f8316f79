package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/ferux/tankhub/internal/model"
)

func TestParseDeviceJSON(t *testing.T) {
	is := is.New(t)

	msg, err := ParseDeviceJSON([]byte(`{"type":"identify","secret":"s1"}`))
	is.NoErr(err)
	is.Equal(msg.Type, TypeIdentify)
	is.Equal(msg.Identify.Secret, "s1")

	msg, err = ParseDeviceJSON([]byte(`{"type":"telemetry","secret":"s1","level":50,"status":"online","rssi":-60,"signature":"ab"}`))
	is.NoErr(err)
	is.Equal(msg.Telemetry.Level, 50)
	is.Equal(msg.Telemetry.Status, model.StatusOnline)
	is.True(msg.Telemetry.HasStatus)
	is.Equal(*msg.Telemetry.RSSI, -60)
	is.Equal(msg.Telemetry.Signature, "ab")
	is.Equal(msg.Telemetry.Payload().Fields(), "50|online|-60")

	msg, err = ParseDeviceJSON([]byte(`{"type":"telemetry","secret":"s1","level":7,"signature":"ab"}`))
	is.NoErr(err)
	is.True(!msg.Telemetry.HasStatus)
	is.True(msg.Telemetry.RSSI == nil)
	is.Equal(msg.Telemetry.Payload().Fields(), "7||")
}

func TestParseDeviceJSONMalformed(t *testing.T) {
	for name, frame := range map[string]string{
		"garbage":        `{"type":`,
		"array":          `[1,2]`,
		"unknown type":   `{"type":"reboot","secret":"s1"}`,
		"empty secret":   `{"type":"identify","secret":""}`,
		"no level":       `{"type":"telemetry","secret":"s1","signature":"ab"}`,
		"string level":   `{"type":"telemetry","secret":"s1","level":"50"}`,
		"fraction level": `{"type":"telemetry","secret":"s1","level":5.5}`,
		"level too high": `{"type":"telemetry","secret":"s1","level":101}`,
		"negative level": `{"type":"telemetry","secret":"s1","level":-1}`,
		"no secret":      `{"type":"telemetry","level":1}`,
		"oversized":      `{"type":"identify","secret":"` + strings.Repeat("a", MaxFrameSize) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			is := is.New(t)
			_, err := ParseDeviceJSON([]byte(frame))
			is.True(errors.Is(err, model.ErrMalformed))
		})
	}
}

func TestDeviceCBOR(t *testing.T) {
	is := is.New(t)
	rssi := -71

	data, err := EncodeDeviceCBOR(DeviceMessage{
		Type: TypeTelemetry,
		Telemetry: Telemetry{
			Secret:    "s1",
			Level:     33,
			Status:    "SENSOR_FAULT",
			HasStatus: true,
			RSSI:      &rssi,
			Signature: "cd",
		},
	})
	is.NoErr(err)

	msg, err := ParseDeviceCBOR(data)
	is.NoErr(err)
	is.Equal(msg.Type, TypeTelemetry)
	is.Equal(msg.Telemetry.Level, 33)
	is.Equal(msg.Telemetry.Status, model.Status("SENSOR_FAULT"))
	is.Equal(*msg.Telemetry.RSSI, -71)
	is.Equal(msg.Telemetry.Payload().Fields(), "33|SENSOR_FAULT|-71")

	data, err = EncodeDeviceCBOR(DeviceMessage{Type: TypeIdentify, Identify: Identify{Secret: "s1"}})
	is.NoErr(err)
	msg, err = ParseDeviceCBOR(data)
	is.NoErr(err)
	is.Equal(msg.Identify.Secret, "s1")

	_, err = ParseDeviceCBOR([]byte{0xff, 0x00})
	is.True(errors.Is(err, model.ErrMalformed))

	data, err = EncodeDeviceCBOR(DeviceMessage{Type: TypeTelemetry, Telemetry: Telemetry{Secret: "s1", Level: 120}})
	is.NoErr(err)
	_, err = ParseDeviceCBOR(data)
	is.True(errors.Is(err, model.ErrMalformed))
}

func TestParseObserver(t *testing.T) {
	is := is.New(t)

	update, err := ParseObserver([]byte(`{"type":"update-config","id":"tank_1","name":"Roof","capacity":8000,"location":null}`))
	is.NoErr(err)
	is.Equal(update.ID, "tank_1")
	is.Equal(*update.Patch.Name, "Roof")
	is.Equal(*update.Patch.Capacity, 8000)
	is.True(update.Patch.Location == nil)
	is.True(update.Patch.Height == nil)

	_, err = ParseObserver([]byte(`{"type":"update-config","name":"Roof"}`))
	is.True(errors.Is(err, model.ErrMalformed))

	_, err = ParseObserver([]byte(`{"type":"update-config","id":"tank_1","capacity":"big"}`))
	is.True(errors.Is(err, model.ErrMalformed))

	_, err = ParseObserver([]byte(`{"type":"delete","id":"tank_1"}`))
	is.True(errors.Is(err, model.ErrMalformed))
}

func TestParsePatch(t *testing.T) {
	is := is.New(t)

	patch, err := ParsePatch([]byte(`{"height":150,"alertThreshold":20}`))
	is.NoErr(err)
	is.Equal(*patch.Height, 150)
	is.Equal(*patch.AlertThreshold, 20)
	is.True(patch.Name == nil)

	_, err = ParsePatch([]byte(`"name"`))
	is.True(errors.Is(err, model.ErrMalformed))
}
