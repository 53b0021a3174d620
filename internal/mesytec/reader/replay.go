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

package reader

import (
	"log/slog"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/module"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/word"
)

// ReadEventInBufferV1 parses a buffer holding a single pre-extracted event:
// only module headers followed by their payload words, with no
// end-of-event markers inside. A header switches to the next module;
// MDPP/VMMR data words are classified against the current module's
// firmware; MVLC-scaler data is stored verbatim. The assembled event is
// delivered to sink once, at the end of the buffer. This entry point is
// for offline file consumers that have already split a listfile into
// single-event buffers — it does not run the start/end readout state
// machine.
func ReadEventInBufferV1(buf []byte, crate *cratemap.Map, eventNumber uint64, sink Sink) (*event.Event, SinkResult, error) {
	if len(buf)%4 != 0 {
		return nil, 0, ErrBufferNotAligned
	}

	ev := event.New(eventNumber)
	acc := &module.Data{}
	var current *module.Data
	var desc *cratemap.Descriptor

	flush := func() {
		if current != nil && current.HasData() {
			ev.AddModuleData(current)
		}
	}

	for cursor := 0; cursor+4 <= len(buf); cursor += 4 {
		w := word.ReadWord(buf[cursor:])
		switch {
		case word.IsModuleHeader(w):
			flush()
			id := word.ModuleID(w)
			d, err := crate.Get(id)
			if err != nil {
				current, desc = nil, nil
				continue
			}
			desc = d
			acc.SetHeader(w, id, desc.Firmware, word.ModuleSetting(w), announcedLengthFor(desc.Firmware, w))
			current = acc
		case current != nil && isModuleDataWordFor(desc.Firmware, w):
			accumulateWordInto(desc, current, w)
		default:
			// framing headers, fill words, anything else: ignored
		}
	}
	flush()

	if !ev.HasData() {
		return ev, Accepted, nil
	}
	result, err := sink(ev, crate)
	if err != nil {
		return ev, 0, &SinkAbortedError{Err: err}
	}
	return ev, result, nil
}

// ReadEventInBufferV0 parses the legacy single-event format: module
// headers appear even for modules carrying no data, and a module is
// closed either by an end-of-event word or — bug-compatibly with
// historical listfiles — by a framing-header word appearing where an
// end-of-event word was expected. A header opens a new module; MDPP data
// is classified; any closing word appends the current module to the
// event. One event is delivered to sink at the end of the buffer.
func ReadEventInBufferV0(buf []byte, crate *cratemap.Map, eventNumber uint64, sink Sink, logger *slog.Logger) (*event.Event, SinkResult, error) {
	if len(buf)%4 != 0 {
		return nil, 0, ErrBufferNotAligned
	}
	if logger == nil {
		logger = slog.Default()
	}

	ev := event.New(eventNumber)
	acc := &module.Data{}
	var current *module.Data
	var desc *cratemap.Descriptor

	closeCurrent := func() {
		if current != nil && current.HasData() {
			ev.AddModuleData(current)
		}
		current, desc = nil, nil
	}

	for cursor := 0; cursor+4 <= len(buf); cursor += 4 {
		w := word.ReadWord(buf[cursor:])
		switch {
		case word.IsModuleHeader(w):
			closeCurrent()
			id := word.ModuleID(w)
			d, err := crate.Get(id)
			if err != nil {
				logger.Warn("mesytec: unknown module id in v0 header", "module_id", id)
				continue
			}
			desc = d
			acc.SetHeader(w, id, desc.Firmware, word.ModuleSetting(w), announcedLengthFor(desc.Firmware, w))
			current = acc
		case current != nil && word.IsEndOfEvent(w):
			// Bug-compatible with v0 listfiles: framing-header words share
			// the same top-two-bits-set pattern as a genuine end-of-event
			// word, so a framing header seen here also closes the module
			// instead of being ignored the way the main reader ignores it.
			closeCurrent()
		case current != nil && isModuleDataWordFor(desc.Firmware, w):
			accumulateWordInto(desc, current, w)
		default:
		}
	}
	closeCurrent()

	if !ev.HasData() {
		return ev, Accepted, nil
	}
	result, err := sink(ev, crate)
	if err != nil {
		return ev, 0, &SinkAbortedError{Err: err}
	}
	return ev, result, nil
}
