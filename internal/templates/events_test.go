package templates

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"

	"github.com/ferux/tankhub/internal/model"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decode(t *testing.T, s string) frame {
	t.Helper()

	var f frame
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		t.Fatalf("frame %s is not json: %v", s, err)
	}

	return f
}

func TestUpdateFrame(t *testing.T) {
	is := is.New(t)
	rssi := -60
	view := model.PublicView{
		ID:       "tank_1",
		Name:     `Roof "north"`,
		Location: "Central Fleet",
		Level:    50,
		Volume:   2500,
		Capacity: 5000,
		Status:   model.StatusOnline,
		Online:   true,
		RSSI:     &rssi,
		Updated:  "Live",
	}

	f := decode(t, UpdateFrame(&view))
	is.Equal(f.Event, "update")

	var got model.PublicView
	is.NoErr(json.Unmarshal(f.Data, &got))
	is.True(got.Equal(view))

	view.RSSI = nil
	view.Online = false
	f = decode(t, UpdateFrame(&view))
	var raw map[string]interface{}
	is.NoErr(json.Unmarshal(f.Data, &raw))
	is.Equal(raw["rssi"], nil)
	is.Equal(raw["isOnline"], false)
	_, hasSecret := raw["secret"]
	is.True(!hasSecret)
}

func TestSnapshotFrame(t *testing.T) {
	is := is.New(t)

	f := decode(t, SnapshotFrame(nil))
	is.Equal(f.Event, "snapshot")
	is.Equal(string(f.Data), "[]")

	views := []model.PublicView{{ID: "a", Updated: "Offline"}, {ID: "b", Updated: "Offline"}}
	f = decode(t, SnapshotFrame(views))

	var got []model.PublicView
	is.NoErr(json.Unmarshal(f.Data, &got))
	is.Equal(len(got), 2)
	is.Equal(got[1].ID, "b")
}

func TestSmallFrames(t *testing.T) {
	is := is.New(t)

	is.Equal(AlertLowFrame("tank_1", "Roof", 5, 10), `{"event":"alert-low","data":{"id":"tank_1","name":"Roof","level":5,"threshold":10}}`)
	is.Equal(AlertFullFrame("tank_1", "Roof", 97), `{"event":"alert-full","data":{"id":"tank_1","name":"Roof","level":97}}`)
	is.Equal(OfflineFrame("tank_1"), `{"event":"offline","data":{"id":"tank_1"}}`)
	is.Equal(DecommissionedFrame("tank_1"), `{"event":"decommissioned","data":{"id":"tank_1"}}`)
	is.Equal(ConfigFrame(5000, "Roof"), `{"event":"config","data":{"capacity":5000,"name":"Roof"}}`)
	is.Equal(PhysicalConfigFrame(200), `{"event":"physical-config","data":{"height":200}}`)
}

func TestInfoJSON(t *testing.T) {
	is := is.New(t)
	data := MarshalData{Revision: "abc", Branch: "master", Uptime: 12.7, RequestCount: 3, Devices: 2}

	var got map[string]interface{}
	is.NoErr(json.Unmarshal([]byte(data.JSON()), &got))
	is.Equal(got["revision"], "abc")
	is.Equal(got["uptime"], float64(12))
	is.Equal(got["devices"], float64(2))
}
