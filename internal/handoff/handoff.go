// Package handoff reads the product data copied from the storefront helper
// and renders the info block handed back to engine build tooling.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/schaermu/p4vhelper/internal/layout"
)

// ErrMalformed is wrapped when the payload is not the expected JSON object.
var ErrMalformed = errors.New("malformed product data")

// MalformedHint tells the user how to produce a valid payload.
const MalformedHint = "Wrong format received, you need to click 'P4V data' in the SF Helper"

// Payload is the JSON object produced by the browser helper.
type Payload struct {
	EarliestUEVersion  string `json:"earliestUEVersion"`
	DistributionMethod string `json:"distributionMethod"`
	AppName            string `json:"appName"`
	SFCase             string `json:"SFcase,omitempty"`
}

// Decode reads one payload object from r.
func Decode(r io.Reader) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.EarliestUEVersion == "" && p.DistributionMethod == "" && p.AppName == "" {
		return Payload{}, fmt.Errorf("%w: no product fields", ErrMalformed)
	}
	p.EarliestUEVersion = strings.TrimSpace(p.EarliestUEVersion)
	p.AppName = strings.TrimSpace(p.AppName)
	p.SFCase = strings.TrimSpace(p.SFCase)
	return p, nil
}

// Method maps the distribution method, defaulting to asset packs when unset.
func (p Payload) Method() (layout.Method, error) {
	if p.DistributionMethod == "" {
		return layout.AssetPacks, nil
	}
	return layout.ParseMethod(p.DistributionMethod)
}

// engineVersions maps an engine version to the custom engine build used for it.
var engineVersions = map[string]string{
	"4.20": "4.20.3-4369336+++UE4+Release-4.20",
	"4.21": "4.21.2-4753647+++UE4+Release-4.21",
	"4.22": "4.22.3-7053642+++UE4+Release-4.22",
	"4.23": "4.23.1-9631420+++UE4+Release-4.23",
	"4.24": "4.24.3-11590370+++UE4+Release-4.24",
	"4.25": "4.25.4-14469661+++UE4+Release-4.25",
	"4.26": "4.26.2-14830424+++UE4+Release-4.26",
	"4.27": "4.27.0-17155196+++UE4+Release-4.27",
	"5.0":  "5.0.0-19505902+++UE5+Release-5.0",
	"5.1":  "5.1.0-23058290+++UE5+Release-5.1",
	"5.2":  "5.2.0-25360045+++UE5+Release-5.2",
	"5.3":  "5.3.0-27405482+++UE5+Release-5.3",
	"5.4":  "5.4.0-33043543+++UE5+Release-5.4",
	"5.5":  "5.5.0-37670630+++UE5+Release-5.5",
}

// CustomEngineVersion returns the engine build string for version, if known.
func CustomEngineVersion(version string) (string, bool) {
	v, ok := engineVersions[version]
	return v, ok
}

// InfoBlock renders the four-line product summary. The engine line is left
// blank for versions without a custom build.
func InfoBlock(app string, method layout.Method, version string) string {
	engine, _ := CustomEngineVersion(version)
	return fmt.Sprintf("App Name: %s\nDistribution Method: %s\nEarliest UE Version: %s\nCustom Engine Version: %s",
		app, method, version, engine)
}
