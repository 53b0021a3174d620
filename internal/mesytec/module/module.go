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

// Package module accumulates the decoded data words belonging to a single
// module within one readout cycle, ready to be handed to the event
// assembler when the module's end-of-event word is reached.
package module

import "github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"

// Item is one decoded datum from a module: a channel/bus pair, its kind,
// and its raw value, plus the original 32-bit word it was decoded from so
// the module's payload can be serialized back out verbatim.
type Item struct {
	Bus     uint8
	Channel uint8
	Kind    uint8 // mirrors word.ChannelKind, stored as a plain uint8
	Datum   uint16
	RawWord uint32
}

// Data accumulates one module's contribution to the current event.
type Data struct {
	ModuleID uint8
	Firmware cratemap.Firmware
	Setting  uint8

	// HeaderWord is the original module header word, kept verbatim so the
	// module's contribution can be serialized back into a buffer.
	HeaderWord uint32

	// AnnouncedLength is the data-word count taken from the module header;
	// Done and Remaining compare it with the words added so far. The reader
	// closes a module on its end-of-event word, not on this count.
	AnnouncedLength uint16
	wordsConsumed   uint16

	Items []Item

	// RawWords holds a TGV or MVLC-scaler module's payload verbatim — these
	// firmwares are stored as-is rather than decoded into Items.
	RawWords []uint32
}

// New returns a Data ready to accumulate a module header's payload.
func New(headerWord uint32, id uint8, firmware cratemap.Firmware, setting uint8, announcedLength uint16) *Data {
	d := &Data{}
	d.SetHeader(headerWord, id, firmware, setting, announcedLength)
	return d
}

// SetHeader clears d and reinitializes it for a new module header, letting
// the reader reuse a single accumulator across modules instead of
// allocating a fresh Data per header.
func (d *Data) SetHeader(headerWord uint32, id uint8, firmware cratemap.Firmware, setting uint8, announcedLength uint16) {
	d.Clear()
	d.HeaderWord = headerWord
	d.ModuleID = id
	d.Firmware = firmware
	d.Setting = setting
	d.AnnouncedLength = announcedLength
}

// AddItem appends a decoded channel datum and counts one consumed word.
func (d *Data) AddItem(it Item) {
	d.Items = append(d.Items, it)
	d.wordsConsumed++
}

// AddRawWord appends one verbatim payload word (TGV / MVLC scaler) and
// counts one consumed word.
func (d *Data) AddRawWord(w uint32) {
	d.RawWords = append(d.RawWords, w)
	d.wordsConsumed++
}

// Done reports whether the module's announced word count has been fully
// consumed.
func (d *Data) Done() bool { return d.wordsConsumed >= d.AnnouncedLength }

// Remaining returns the number of data words still expected before Done.
func (d *Data) Remaining() uint16 {
	if d.wordsConsumed >= d.AnnouncedLength {
		return 0
	}
	return d.AnnouncedLength - d.wordsConsumed
}

// HasData reports whether any item or raw word was accumulated.
func (d *Data) HasData() bool { return len(d.Items) > 0 || len(d.RawWords) > 0 }

// Clear resets Data for reuse, keeping its underlying slices' capacity.
func (d *Data) Clear() {
	d.ModuleID = 0
	d.Firmware = cratemap.FirmwareUnknown
	d.Setting = 0
	d.HeaderWord = 0
	d.AnnouncedLength = 0
	d.wordsConsumed = 0
	d.Items = d.Items[:0]
	d.RawWords = d.RawWords[:0]
}
