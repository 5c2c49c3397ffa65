package protocol

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/resource"
)

// DemoVolume is the volume transferred per reagent in the demo script, in µl.
const DemoVolume = 50.0

// DemoScript returns a reagent addition for the first wells wells of the
// demo plate: for every well, each reagent trough in turn is transferred
// with a fresh tip, which is returned to the rack afterwards.
func DemoScript(wells int) []Step {
	var steps []Step
	tip := 0
	for w := 0; w < wells; w++ {
		well := fmt.Sprintf("plate1_well_%s", resource.WellID(w%8, w/8))
		for _, r := range Reagents {
			spot := fmt.Sprintf("tip_rack1_tipspot_%s", resource.WellID(tip%8, tip/8))
			tip++
			steps = append(steps,
				Step{Op: event.PickUpTips, Resources: []string{spot}},
				Step{Op: event.Aspirate, Resources: []string{r.Trough}, Volume: DemoVolume},
				Step{Op: event.Dispense, Resources: []string{well}, Volume: DemoVolume},
				Step{Op: event.DropTips, Resources: []string{spot}},
			)
		}
	}
	return steps
}

// Script is the on-disk form of a step list:
//
//	[[step]]
//	op = "pick_up_tips"
//	resources = ["tip_rack1_tipspot_A1"]
//
//	[[step]]
//	op = "aspirate"
//	resources = ["trough_halide"]
//	volume = 50
type Script struct {
	Steps []Step `toml:"step"`
}

// LoadScript reads a TOML step list and checks every operation name.
func LoadScript(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "script %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var s Script
	if _, err := toml.Decode(string(data), &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse script %s", path)
	}
	for i, st := range s.Steps {
		if !st.Op.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidInput, "script %s: step %d: unknown operation %q", path, i, st.Op)
		}
	}
	return s.Steps, nil
}
