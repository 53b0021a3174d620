// SPDX-License-Identifier: AGPL-3.0-or-later
// mesytec-mvlc-collator - Parse Mesytec MVLC readout streams into collated events
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package cratemap

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// MalformedFileError reports a row that could not be parsed, naming the
// file and line number per spec's error taxonomy (§7.4).
type MalformedFileError struct {
	File string
	Line int
	Err  error
}

func (e *MalformedFileError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *MalformedFileError) Unwrap() error { return e.Err }

// Builder accumulates module descriptors and detector names before
// producing an immutable Map.
type Builder struct {
	byID     map[uint8]*Descriptor
	start    *uint8
	end      *uint8
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{byID: map[uint8]*Descriptor{}}
}

func parseFirmwareTag(tag string) (Firmware, bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "MDPP_SCP", "SCP":
		return FirmwareMdppScp, true
	case "MDPP_QDC", "QDC":
		return FirmwareMdppQdc, true
	case "MDPP_CSI", "CSI":
		return FirmwareMdppCsi, true
	case "VMMR":
		return FirmwareVmmr, true
	case "TGV":
		return FirmwareTgv, true
	case "MVLC_SCALER":
		return FirmwareMvlcScaler, true
	case "START_READOUT":
		return FirmwareStartReadout, true
	case "END_READOUT":
		return FirmwareEndReadout, true
	default:
		return FirmwareUnknown, false
	}
}

// AddModuleRow parses one line of the crate-map file
// ("name,hex_id,nchan_or_nbus,firmware_tag") and registers the module (or
// sentinel) it describes.
func (b *Builder) AddModuleRow(row string) error {
	fields := splitCSV(row)
	if len(fields) != 4 {
		return fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	name := strings.TrimSpace(fields[0])
	id, err := parseHexID(fields[1])
	if err != nil {
		return fmt.Errorf("bad hex id %q: %w", fields[1], err)
	}
	count, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 8)
	if err != nil {
		return fmt.Errorf("bad channel/bus count %q: %w", fields[2], err)
	}
	firmware, ok := parseFirmwareTag(fields[3])
	if !ok {
		return fmt.Errorf("unknown firmware tag %q", fields[3])
	}

	switch firmware {
	case FirmwareStartReadout:
		b.start = &id
		return nil
	case FirmwareEndReadout:
		b.end = &id
		return nil
	}

	desc := &Descriptor{
		ID:                 id,
		Name:               name,
		Firmware:           firmware,
		NumChannelsOrBuses: uint8(count),
	}
	switch {
	case firmware.IsMdpp():
		if count != 16 && count != 32 {
			return fmt.Errorf("MDPP module %q must have 16 or 32 channels, got %d", name, count)
		}
		desc.Buses = []Bus{{ID: 0, ChannelNames: make([]string, count)}}
	case firmware == FirmwareVmmr:
		if count != 8 && count != 16 {
			return fmt.Errorf("VMMR module %q must have 8 or 16 buses, got %d", name, count)
		}
		desc.Buses = make([]Bus, count)
		for i := range desc.Buses {
			desc.Buses[i] = Bus{ID: uint8(i), ChannelNames: make([]string, 128)}
		}
	case firmware == FirmwareTgv, firmware == FirmwareMvlcScaler:
		// no channel/bus structure to populate
	}
	b.byID[id] = desc
	return nil
}

// AddDetectorRow parses one line of the detector-correspondence file —
// "hex_id,channel,name" for MDPP, "hex_id,bus,channel,name" for VMMR — and
// assigns the detector name. The module's arity (already registered via
// AddModuleRow) decides which form is expected.
func (b *Builder) AddDetectorRow(row string) error {
	fields := splitCSV(row)
	if len(fields) != 3 && len(fields) != 4 {
		return fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}
	id, err := parseHexID(fields[0])
	if err != nil {
		return fmt.Errorf("bad hex id %q: %w", fields[0], err)
	}
	desc, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("module id %#02x referenced in detector file is not registered", id)
	}
	wantFields := 3
	if desc.Firmware == FirmwareVmmr {
		wantFields = 4
	}
	if len(fields) != wantFields {
		return fmt.Errorf("module %#02x (%s) expects %d fields per detector row, got %d", id, desc.Firmware, wantFields, len(fields))
	}

	var bus uint64
	var channelField, nameField string
	if len(fields) == 4 {
		bus, err = strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 8)
		if err != nil {
			return fmt.Errorf("bad bus %q: %w", fields[1], err)
		}
		channelField, nameField = fields[2], fields[3]
	} else {
		channelField, nameField = fields[1], fields[2]
	}
	channel, err := strconv.ParseUint(strings.TrimSpace(channelField), 10, 8)
	if err != nil {
		return fmt.Errorf("bad channel %q: %w", channelField, err)
	}

	for i := range desc.Buses {
		if desc.Buses[i].ID == uint8(bus) {
			if int(channel) >= len(desc.Buses[i].ChannelNames) {
				return fmt.Errorf("channel %d out of range for module %#02x bus %d", channel, id, bus)
			}
			desc.Buses[i].ChannelNames[channel] = strings.TrimSpace(nameField)
			return nil
		}
	}
	return fmt.Errorf("module %#02x has no bus %d", id, bus)
}

// Build finalizes the Map. The start/end sentinel ids must both have been
// set and must not collide with any registered module id.
func (b *Builder) Build() (*Map, error) {
	if b.start == nil {
		return nil, fmt.Errorf("crate map: no START_READOUT sentinel defined")
	}
	if b.end == nil {
		return nil, fmt.Errorf("crate map: no END_READOUT sentinel defined")
	}
	if _, ok := b.byID[*b.start]; ok {
		return nil, fmt.Errorf("crate map: START_READOUT id %#02x collides with a registered module", *b.start)
	}
	if _, ok := b.byID[*b.end]; ok {
		return nil, fmt.Errorf("crate map: END_READOUT id %#02x collides with a registered module", *b.end)
	}
	if *b.start == *b.end {
		return nil, fmt.Errorf("crate map: START_READOUT and END_READOUT ids must differ")
	}

	maxID := uint8(0)
	ids := make([]uint8, 0, len(b.byID))
	for id := range b.byID {
		ids = append(ids, id)
		if id > maxID {
			maxID = id
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	descriptors := make([]*Descriptor, int(maxID)+1)
	for _, id := range ids {
		descriptors[id] = b.byID[id]
	}

	return &Map{
		descriptors:    descriptors,
		ids:            ids,
		startReadoutID: *b.start,
		endReadoutID:   *b.end,
		hasStart:       true,
		hasEnd:         true,
	}, nil
}

// LoadCrateMapFile reads a crate-map text file into the builder, tolerant
// of trailing blank lines.
func LoadCrateMapFile(r io.Reader, filename string) (*Builder, error) {
	b := NewBuilder()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		if err := b.AddModuleRow(row); err != nil {
			return nil, &MalformedFileError{File: filename, Line: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return b, nil
}

// LoadDetectorCorrespondenceFile reads a detector-correspondence text file
// into a builder already populated via LoadCrateMapFile.
func LoadDetectorCorrespondenceFile(b *Builder, r io.Reader, filename string) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		row := strings.TrimSpace(scanner.Text())
		if row == "" {
			continue
		}
		if err := b.AddDetectorRow(row); err != nil {
			return &MalformedFileError{File: filename, Line: line, Err: err}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}
	return nil
}

func parseHexID(field string) (uint8, error) {
	s := strings.TrimSpace(field)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func splitCSV(row string) []string {
	parts := strings.Split(row, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
