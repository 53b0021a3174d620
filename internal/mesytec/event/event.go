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

//go:generate msgp

// Package event assembles the per-module data collected during one readout
// cycle into a single Event, applies the TGV timestamp rule, and
// serializes the result with msgp for transport over the message bus.
package event

import (
	"encoding/binary"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/module"
)

// ChannelDatum is one decoded channel reading, flattened for serialization.
// RawWord is the original 32-bit word it was decoded from, kept verbatim so
// Serialize can reconstruct the source buffer.
type ChannelDatum struct {
	ModuleID uint8  `msg:"module_id"`
	Bus      uint8  `msg:"bus"`
	Channel  uint8  `msg:"channel"`
	Kind     uint8  `msg:"kind"`
	Datum    uint16 `msg:"datum"`
	RawWord  uint32 `msg:"raw_word"`
}

// moduleRecord preserves one module's header word and the raw payload
// words that followed it, in their original order, independent of how
// AddModuleData's caller chooses to reuse its module.Data accumulator.
type moduleRecord struct {
	headerWord uint32
	rawWords   []uint32
}

// tgvReadyMask is bit 2 of the TGV module's first payload word.
const tgvReadyMask = 0x00000004

// Event is the fully assembled, serializable result of one readout cycle:
// every channel datum seen between START_READOUT and END_READOUT, plus the
// 48-bit TGV centrum timestamp (as three 16-bit words) that applies to the
// whole event.
type Event struct {
	EventNumber uint64         `msg:"event_number"`
	TgvTsLo     uint16         `msg:"tgv_ts_lo"`
	TgvTsMid    uint16         `msg:"tgv_ts_mid"`
	TgvTsHi     uint16         `msg:"tgv_ts_hi"`
	Channels    []ChannelDatum `msg:"channels"`
	ScalerWords []uint32       `msg:"scaler_words"`

	moduleCount int
	modules     []moduleRecord
}

// New returns an empty Event tagged with eventNumber.
func New(eventNumber uint64) *Event {
	return &Event{EventNumber: eventNumber}
}

// AddModuleData folds one module's accumulated data into the event. TGV
// data is consulted for the event's 48-bit centrum timestamp rather than
// contributing channel data; MVLC scaler data is stored verbatim in
// ScalerWords; everything else becomes ChannelDatum entries. Returns false
// if the module was TGV data present but its ready flag was clear
// (TgvNotReady) — the event is still assembled, but the caller should emit
// a warning.
func (e *Event) AddModuleData(d *module.Data) (tgvReady bool) {
	e.moduleCount++

	rawWords := make([]uint32, 0, max(len(d.Items), len(d.RawWords)))
	for _, it := range d.Items {
		rawWords = append(rawWords, it.RawWord)
	}
	rawWords = append(rawWords, d.RawWords...)
	e.modules = append(e.modules, moduleRecord{headerWord: d.HeaderWord, rawWords: rawWords})

	switch d.Firmware {
	case cratemap.FirmwareTgv:
		return e.applyTGVWords(d.RawWords)
	case cratemap.FirmwareMvlcScaler:
		e.ScalerWords = append(e.ScalerWords, d.RawWords...)
	default:
		for _, it := range d.Items {
			e.Channels = append(e.Channels, ChannelDatum{
				ModuleID: d.ModuleID,
				Bus:      it.Bus,
				Channel:  it.Channel,
				Kind:     it.Kind,
				Datum:    it.Datum,
				RawWord:  it.RawWord,
			})
		}
	}
	return true
}

// applyTGVWords implements the §4.5 TGV rule: if exactly four words were
// collected and the first word's ready bit is set, the low 16 bits of
// words 1/2/3 become TgvTsLo/Mid/Hi; otherwise all three timestamps are
// left at zero and the caller is told to warn.
func (e *Event) applyTGVWords(words []uint32) (ready bool) {
	if len(words) != 4 || words[0]&tgvReadyMask == 0 {
		e.TgvTsLo, e.TgvTsMid, e.TgvTsHi = 0, 0, 0
		return false
	}
	e.TgvTsLo = uint16(words[1])
	e.TgvTsMid = uint16(words[2])
	e.TgvTsHi = uint16(words[3])
	return true
}

// HasData reports whether at least one module was added to the event — an
// event with none is dropped by the reader rather than handed to a sink.
func (e *Event) HasData() bool { return e.moduleCount > 0 }

// Serialize reconstructs the module-readout buffer this event was built
// from: each module's header word followed by its raw data words,
// back-to-back as little-endian 32-bit words, in the order the modules
// were added. Modules with no items are omitted, since AddModuleData's
// callers only invoke it for modules that produced data.
func (e *Event) Serialize() []byte {
	n := 0
	for _, m := range e.modules {
		n += 1 + len(m.rawWords)
	}
	out := make([]byte, n*4)
	pos := 0
	for _, m := range e.modules {
		binary.LittleEndian.PutUint32(out[pos:], m.headerWord)
		pos += 4
		for _, w := range m.rawWords {
			binary.LittleEndian.PutUint32(out[pos:], w)
			pos += 4
		}
	}
	return out
}

// Reset clears an Event for reuse, keeping its slices' capacity.
func (e *Event) Reset(eventNumber uint64) {
	e.EventNumber = eventNumber
	e.TgvTsLo, e.TgvTsMid, e.TgvTsHi = 0, 0, 0
	e.Channels = e.Channels[:0]
	e.ScalerWords = e.ScalerWords[:0]
	e.modules = e.modules[:0]
	e.moduleCount = 0
}
