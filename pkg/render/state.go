package render

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/matzehuels/deckreel/pkg/resource"
)

type tipState struct {
	HasTip bool `mapstructure:"has_tip"`
}

type liquidState struct {
	Liquids   []resource.Liquid `mapstructure:"liquids"`
	MaxVolume float64           `mapstructure:"max_volume"`
}

var liquidType = reflect.TypeOf(resource.Liquid{})

// liquidPairHook turns a [label, volume] pair into a resource.Liquid.
func liquidPairHook(from, to reflect.Type, data any) (any, error) {
	if to != liquidType || from.Kind() != reflect.Slice {
		return data, nil
	}
	pair, ok := data.([]any)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("liquid entry must be a [label, volume] pair, got %v", data)
	}
	return map[string]any{"Label": pair[0], "Volume": pair[1]}, nil
}

func decodeState(state map[string]any, out any) error {
	if state == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       liquidPairHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(state)
}

func decodeTipState(state map[string]any) (tipState, error) {
	var s tipState
	err := decodeState(state, &s)
	return s, err
}

func decodeLiquidState(state map[string]any) (liquidState, error) {
	var s liquidState
	err := decodeState(state, &s)
	return s, err
}
