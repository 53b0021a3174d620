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

// Package cratemap describes the VME crate under readout: which module id
// corresponds to which firmware, and which detector name corresponds to
// which (bus, channel) pair. A Map is built once at start-up and is
// immutable and safely shared (read-only) for the remainder of the run.
package cratemap

import (
	"fmt"
	"io"
	"strconv"
)

// Firmware identifies the decoding rules a module id's data words follow.
type Firmware uint8

const (
	FirmwareUnknown Firmware = iota
	FirmwareMdppScp
	FirmwareMdppQdc
	FirmwareMdppCsi
	FirmwareVmmr
	FirmwareTgv
	FirmwareMvlcScaler
	FirmwareStartReadout
	FirmwareEndReadout
)

// String implements fmt.Stringer.
func (f Firmware) String() string {
	switch f {
	case FirmwareMdppScp:
		return "MDPP_SCP"
	case FirmwareMdppQdc:
		return "MDPP_QDC"
	case FirmwareMdppCsi:
		return "MDPP_CSI"
	case FirmwareVmmr:
		return "VMMR"
	case FirmwareTgv:
		return "TGV"
	case FirmwareMvlcScaler:
		return "MVLC_SCALER"
	case FirmwareStartReadout:
		return "START_READOUT"
	case FirmwareEndReadout:
		return "END_READOUT"
	default:
		return "UNKNOWN"
	}
}

// IsMdpp reports whether f is one of the MDPP firmware variants.
func (f Firmware) IsMdpp() bool {
	return f == FirmwareMdppScp || f == FirmwareMdppQdc || f == FirmwareMdppCsi
}

// Bus is a named group of channels belonging to a module. MDPP modules
// have exactly one synthetic bus with id 0; VMMR modules have 8 or 16.
type Bus struct {
	ID            uint8
	ChannelNames  []string
}

// channelName returns the detector name for channel, or a synthesized
// default if none was assigned.
func (b *Bus) channelName(channel uint8) string {
	if int(channel) < len(b.ChannelNames) && b.ChannelNames[channel] != "" {
		return b.ChannelNames[channel]
	}
	return fmt.Sprintf("bus_%d_chan_%d", b.ID, channel)
}

// Descriptor is the crate map's per-module entry.
type Descriptor struct {
	ID       uint8
	Name     string
	Firmware Firmware
	// NumChannelsOrBuses is the channel count for MDPP, the bus count for VMMR.
	NumChannelsOrBuses uint8
	Buses              []Bus
}

// DetectorName returns the detector name associated with (bus, channel).
// For MDPP modules, bus is always 0.
func (d *Descriptor) DetectorName(bus, channel uint8) string {
	for i := range d.Buses {
		if d.Buses[i].ID == bus {
			return d.Buses[i].channelName(channel)
		}
	}
	return fmt.Sprintf("bus_%d_chan_%d", bus, channel)
}

// ErrUnknownModule is returned by Get when no descriptor exists for an id.
type ErrUnknownModule struct{ ID uint8 }

func (e ErrUnknownModule) Error() string {
	return fmt.Sprintf("cratemap: no module registered for id %#02x", e.ID)
}

// Map is the dense, read-only crate map: module id -> Descriptor, plus the
// start/end readout sentinel ids. Built once via Builder and never mutated.
type Map struct {
	descriptors     []*Descriptor // dense, indexed by id; nil where unpopulated
	ids             []uint8       // occupied ids, in ascending id order
	startReadoutID  uint8
	endReadoutID    uint8
	hasStart        bool
	hasEnd          bool
}

// HasModule reports whether id has a registered descriptor.
func (m *Map) HasModule(id uint8) bool {
	return int(id) < len(m.descriptors) && m.descriptors[id] != nil
}

// Get returns the descriptor for id, or ErrUnknownModule if none exists.
func (m *Map) Get(id uint8) (*Descriptor, error) {
	if !m.HasModule(id) {
		return nil, ErrUnknownModule{ID: id}
	}
	return m.descriptors[id], nil
}

// NumberOfModules returns the count of populated descriptors (sentinels
// are not counted since no descriptor is created for them).
func (m *Map) NumberOfModules() int { return len(m.ids) }

// StartReadoutID returns the sentinel id that opens a readout cycle.
func (m *Map) StartReadoutID() uint8 { return m.startReadoutID }

// EndReadoutID returns the sentinel id that closes a readout cycle.
func (m *Map) EndReadoutID() uint8 { return m.endReadoutID }

// DetectorName looks up the detector name for (id, bus, channel), falling
// back to a synthesized name if id is unknown or the entry is unset.
func (m *Map) DetectorName(id, bus, channel uint8) string {
	desc, err := m.Get(id)
	if err != nil {
		return fmt.Sprintf("bus_%d_chan_%d", bus, channel)
	}
	return desc.DetectorName(bus, channel)
}

// Describe writes a human-readable dump of every registered module and its
// channel-to-detector assignments, for use by diagnostic / CLI tooling.
// This is not on the hot path.
func (m *Map) Describe(w io.Writer) {
	fmt.Fprintf(w, "crate map: %d modules, start=%#02x end=%#02x\n", len(m.ids), m.startReadoutID, m.endReadoutID)
	for _, id := range m.ids {
		d := m.descriptors[id]
		fmt.Fprintf(w, "  %#02x %-12s firmware=%s\n", d.ID, d.Name, d.Firmware)
		for _, b := range d.Buses {
			fmt.Fprintf(w, "    bus %d:\n", b.ID)
			for ch, name := range b.ChannelNames {
				fmt.Fprintf(w, "      chan=%-3d det=%s\n", ch, name)
			}
		}
	}
}

func (m *Map) String() string {
	id := strconv.Itoa(len(m.ids))
	return "cratemap.Map{modules=" + id + "}"
}
