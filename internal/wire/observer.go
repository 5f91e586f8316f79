package wire

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/ferux/tankhub/internal/model"
)

// TypeUpdateConfig is the only message observers may send.
const TypeUpdateConfig = "update-config"

// ConfigUpdate asks to change the configuration of the tank with ID.
type ConfigUpdate struct {
	ID    string
	Patch model.ConfigPatch
}

// ParseObserver decodes an observer frame.
func ParseObserver(data []byte) (ConfigUpdate, error) {
	if len(data) > MaxFrameSize {
		return ConfigUpdate{}, model.ErrMalformed
	}

	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return ConfigUpdate{}, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}

	if typ := string(v.GetStringBytes("type")); typ != TypeUpdateConfig {
		return ConfigUpdate{}, fmt.Errorf("%w: unknown type %q", model.ErrMalformed, typ)
	}

	update := ConfigUpdate{ID: string(v.GetStringBytes("id"))}
	if update.ID == "" {
		return ConfigUpdate{}, fmt.Errorf("%w: id is required", model.ErrMalformed)
	}

	update.Patch, err = patchOf(v)

	return update, err
}

// ParsePatch decodes a configuration patch from a JSON object.
func ParsePatch(data []byte) (model.ConfigPatch, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return model.ConfigPatch{}, fmt.Errorf("%w: %v", model.ErrMalformed, err)
	}

	return patchOf(v)
}

func patchOf(v *fastjson.Value) (patch model.ConfigPatch, err error) {
	if v.Type() != fastjson.TypeObject {
		return patch, model.ErrMalformed
	}

	if patch.Name, err = optString(v, "name"); err != nil {
		return patch, err
	}

	if patch.Location, err = optString(v, "location"); err != nil {
		return patch, err
	}

	if patch.Capacity, err = optInt(v, "capacity"); err != nil {
		return patch, err
	}

	if patch.Height, err = optInt(v, "height"); err != nil {
		return patch, err
	}

	if patch.AlertThreshold, err = optInt(v, "alertThreshold"); err != nil {
		return patch, err
	}

	return patch, nil
}

func optString(v *fastjson.Value, key string) (*string, error) {
	field := v.Get(key)
	if field == nil || field.Type() == fastjson.TypeNull {
		return nil, nil
	}

	if field.Type() != fastjson.TypeString {
		return nil, fmt.Errorf("%w: %s must be a string", model.ErrMalformed, key)
	}

	s := string(field.GetStringBytes())

	return &s, nil
}

func optInt(v *fastjson.Value, key string) (*int, error) {
	field := v.Get(key)
	if field == nil || field.Type() == fastjson.TypeNull {
		return nil, nil
	}

	if field.Type() != fastjson.TypeNumber {
		return nil, fmt.Errorf("%w: %s must be a number", model.ErrMalformed, key)
	}

	n, err := field.Int()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrMalformed, key, err)
	}

	return &n, nil
}
