// SPDX-License-Identifier: MPL-2.0

package runnerv1

import (
	"errors"

	json "github.com/goccy/go-json"
)

// ErrSourceConflict is returned when a message carries both source cases.
var ErrSourceConflict = errors.New("commands and script are mutually exclusive")

type (
	// Source is the program source variant: *CommandList or Script.
	Source interface {
		isSource()
	}

	// CommandList is an ordered list of command lines.
	CommandList struct {
		Items []string `json:"items"`
	}

	// Script is an opaque multi-line program text.
	Script string

	// sourceFields is the wire shape of a Source.
	sourceFields struct {
		Commands *CommandList `json:"commands,omitempty"`
		Script   *string      `json:"script,omitempty"`
	}
)

func (*CommandList) isSource() {}

func (Script) isSource() {}

func toSourceFields(src Source) sourceFields {
	switch s := src.(type) {
	case *CommandList:
		return sourceFields{Commands: s}
	case Script:
		text := string(s)
		return sourceFields{Script: &text}
	default:
		return sourceFields{}
	}
}

// source returns the decoded variant; conflict is set when both cases
// were present on the wire.
func (f sourceFields) source() (src Source, conflict bool) {
	switch {
	case f.Commands != nil && f.Script != nil:
		return nil, true
	case f.Commands != nil:
		return f.Commands, false
	case f.Script != nil:
		return Script(*f.Script), false
	default:
		return nil, false
	}
}

// MarshalJSON implements json.Marshaler.
func (c ProgramConfig) MarshalJSON() ([]byte, error) {
	type plain ProgramConfig
	return json.Marshal(struct {
		plain
		sourceFields
	}{plain(c), toSourceFields(c.Source)})
}

// UnmarshalJSON implements json.Unmarshaler. Both-set sources decode
// without error and are reported through SourceConflict.
func (c *ProgramConfig) UnmarshalJSON(data []byte) error {
	type plain ProgramConfig
	var aux struct {
		plain
		sourceFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = ProgramConfig(aux.plain)
	c.Source, c.conflict = aux.sourceFields.source()
	return nil
}

// Validate returns ErrSourceConflict for a config that carried both
// commands and a script.
func (c *ProgramConfig) Validate() error {
	if c.conflict {
		return ErrSourceConflict
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r ResolveProgramRequest) MarshalJSON() ([]byte, error) {
	type plain ResolveProgramRequest
	return json.Marshal(struct {
		plain
		sourceFields
	}{plain(r), toSourceFields(r.Source)})
}

// UnmarshalJSON implements json.Unmarshaler. Both-set sources decode
// without error and are reported through SourceConflict so the service
// can answer with InvalidArgument.
func (r *ResolveProgramRequest) UnmarshalJSON(data []byte) error {
	type plain ResolveProgramRequest
	var aux struct {
		plain
		sourceFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ResolveProgramRequest(aux.plain)
	r.Source, r.conflict = aux.sourceFields.source()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r ResolveProgramResponse) MarshalJSON() ([]byte, error) {
	type plain ResolveProgramResponse
	return json.Marshal(struct {
		plain
		sourceFields
	}{plain(r), toSourceFields(r.Source)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResolveProgramResponse) UnmarshalJSON(data []byte) error {
	type plain ResolveProgramResponse
	var aux struct {
		plain
		sourceFields
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ResolveProgramResponse(aux.plain)
	r.Source, _ = aux.sourceFields.source()
	return nil
}
