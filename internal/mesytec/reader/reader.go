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

// Package reader implements the core streaming buffer parser: it walks a
// caller-provided byte buffer one 32-bit word at a time, drives the
// readout state machine, feeds the module-data accumulator, assembles
// complete events and dispatches them to a caller-supplied Sink — with a
// re-entrant per-event suspension/resume protocol so a bounded downstream
// can apply backpressure without losing data.
//
// The reader is single-threaded and synchronous: it never suspends except
// by returning control to its caller, and it never spawns a goroutine.
package reader

import (
	"log/slog"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/module"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/readout"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/word"
)

// Observer receives counters the reader updates as it runs, for callers
// that want to export them (e.g. as Prometheus metrics) without the core
// depending on any particular metrics library.
type Observer interface {
	EventParsed()
	EventDroppedEmpty()
	SinkBackpressure()
	TgvNotReady()
	UnknownModuleID(id uint8)
}

// noopObserver discards every event.
type noopObserver struct{}

func (noopObserver) EventParsed()            {}
func (noopObserver) EventDroppedEmpty()      {}
func (noopObserver) SinkBackpressure()       {}
func (noopObserver) TgvNotReady()            {}
func (noopObserver) UnknownModuleID(_ uint8) {}

// Reader is the core buffer parser. It owns the readout state machine, the
// in-flight module accumulator and the in-flight event — all exclusively,
// across calls to ReadBuffer. The word cursor is local to each ReadBuffer
// call.
type Reader struct {
	crate  *cratemap.Map
	sink   Sink
	logger *slog.Logger
	obs    Observer

	machine *readout.Machine

	// acc is the single module-data accumulator reused across every module
	// header seen, cleared in place via module.Data.SetHeader to avoid a
	// per-module allocation. current points at acc while a non-sentinel
	// module is being read, and is nil otherwise.
	acc               *module.Data
	current           *module.Data
	currentDesc       *cratemap.Descriptor
	currentIsSentinel bool

	ev *event.Event

	eventsParsedThisCall     int
	totalEventsParsed        uint64
	storingLastCompleteEvent bool
}

// Option configures optional Reader collaborators.
type Option func(*Reader)

// WithLogger attaches a logger for the warnings the error-handling design
// calls for (unknown module id, TGV not ready). A nil logger is replaced
// with slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		if l == nil {
			l = slog.Default()
		}
		r.logger = l
	}
}

// WithObserver attaches a metrics Observer. Without one, counters are
// discarded.
func WithObserver(o Observer) Option {
	return func(r *Reader) { r.obs = o }
}

// New returns a Reader armed with crate and ready to dispatch complete
// events to sink.
func New(crate *cratemap.Map, sink Sink, opts ...Option) *Reader {
	r := &Reader{
		crate:   crate,
		sink:    sink,
		logger:  slog.Default(),
		obs:     noopObserver{},
		machine: readout.New(crate.StartReadoutID(), crate.EndReadoutID()),
		acc:     &module.Data{},
		ev:      event.New(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EventsParsedThisCall returns the number of complete events dispatched
// during the most recent ReadBuffer call.
func (r *Reader) EventsParsedThisCall() int { return r.eventsParsedThisCall }

// TotalEventsParsed returns the number of complete events dispatched since
// construction or the last Reset.
func (r *Reader) TotalEventsParsed() uint64 { return r.totalEventsParsed }

// StoringLastCompleteEvent reports whether the previous call's final event
// was refused by the sink and is awaiting redelivery.
func (r *Reader) StoringLastCompleteEvent() bool { return r.storingLastCompleteEvent }

// Reset returns the reader to the state of a freshly constructed one: the
// state machine is re-armed, the accumulator and event are cleared,
// counters are zeroed, and any event in flight is discarded without being
// delivered.
func (r *Reader) Reset() {
	r.machine.Reset()
	r.current = nil
	r.currentDesc = nil
	r.currentIsSentinel = false
	r.ev.Reset(0)
	r.eventsParsedThisCall = 0
	r.totalEventsParsed = 0
	r.storingLastCompleteEvent = false
}

// ReadBuffer walks buf one 32-bit little-endian word at a time and returns
// the count of complete events dispatched during this call. buf's length
// must be a multiple of 4.
func (r *Reader) ReadBuffer(buf []byte) (int, error) {
	if len(buf)%4 != 0 {
		return 0, ErrBufferNotAligned
	}
	r.eventsParsedThisCall = 0

	if r.storingLastCompleteEvent {
		done, err := r.cleanupLastCompleteEvent()
		if err != nil {
			return r.eventsParsedThisCall, err
		}
		if !done {
			// Still refused: don't touch this call's buffer at all.
			return r.eventsParsedThisCall, nil
		}
	}

	for cursor := 0; cursor+4 <= len(buf); cursor += 4 {
		w := word.ReadWord(buf[cursor:])
		if err := r.step(w); err != nil {
			return r.eventsParsedThisCall, err
		}
		if r.storingLastCompleteEvent {
			// Sink applied backpressure: stop walking this buffer.
			break
		}
	}
	return r.eventsParsedThisCall, nil
}

// step processes one decoded word against the current state.
func (r *Reader) step(w uint32) error {
	switch {
	case r.machine.ReadingModule() && !word.IsFrameHeader(w) && word.IsEndOfEvent(w):
		return r.endModule()
	case r.machine.ReadingModule() && !r.currentIsSentinel && r.current != nil && r.isModuleDataWord(w):
		r.accumulate(w)
		return nil
	case word.IsModuleHeader(w):
		r.beginModuleHeader(w)
		return nil
	default:
		return nil // framing header, extended timestamp, fill word: ignored
	}
}

// beginModuleHeader handles a module-readout event header word.
func (r *Reader) beginModuleHeader(w uint32) {
	id := word.ModuleID(w)

	// Structural corruption: a fresh START_READOUT while already mid-cycle
	// discards the in-flight event and begins a new cycle.
	if id == r.crate.StartReadoutID() && r.machine.State() != readout.WaitingForStart {
		r.ev.Reset(r.ev.EventNumber)
		r.current = nil
		r.currentDesc = nil
		r.machine.Reset()
	}

	if !r.machine.IsNextModule(id) {
		return // dropped header, state machine does not advance
	}

	sentinel := id == r.crate.StartReadoutID() || id == r.crate.EndReadoutID()
	var desc *cratemap.Descriptor
	if !sentinel {
		d, err := r.crate.Get(id)
		if err != nil {
			r.logger.Warn("mesytec: unknown module id in header", "module_id", id)
			r.obs.UnknownModuleID(id)
			return // header ignored, state machine does not advance
		}
		desc = d
	}

	r.machine.BeginModule(id, sentinel)
	r.currentIsSentinel = sentinel
	r.currentDesc = desc
	if sentinel {
		r.current = nil
		return
	}

	setting := word.ModuleSetting(w)
	r.acc.SetHeader(w, id, desc.Firmware, setting, announcedLengthFor(desc.Firmware, w))
	r.current = r.acc
}

// announcedLengthFor extracts the header's announced data-word count for
// desc's firmware. TGV and MVLC_SCALER modules carry no length field in
// their header — their payload is always four words.
func announcedLengthFor(firmware cratemap.Firmware, w uint32) uint16 {
	switch {
	case firmware.IsMdpp():
		return word.MdppAnnouncedLength(w)
	case firmware == cratemap.FirmwareVmmr:
		return word.VmmrAnnouncedLength(w)
	default:
		return 4
	}
}

// isModuleDataWord reports whether w matches the data-word pattern
// expected for the module currently being read.
func (r *Reader) isModuleDataWord(w uint32) bool {
	return isModuleDataWordFor(r.currentDesc.Firmware, w)
}

// accumulate decodes w under the current module's firmware and appends it.
func (r *Reader) accumulate(w uint32) {
	accumulateWordInto(r.currentDesc, r.current, w)
}

// isModuleDataWordFor reports whether w matches the data-word pattern
// expected for a module of the given firmware. Shared between the main
// buffer walk and the single-event replay entry points
// (ReadEventInBufferV0/V1).
func isModuleDataWordFor(firmware cratemap.Firmware, w uint32) bool {
	switch firmware {
	case cratemap.FirmwareMdppScp, cratemap.FirmwareMdppQdc, cratemap.FirmwareMdppCsi:
		return word.IsMdppOrVmmrAdcData(w)
	case cratemap.FirmwareVmmr:
		return word.IsMdppOrVmmrAdcData(w) || word.IsVmmrTdcData(w)
	case cratemap.FirmwareTgv, cratemap.FirmwareMvlcScaler:
		return word.IsZeroTopHalf(w)
	default:
		return false
	}
}

// accumulateWordInto decodes w under desc's firmware and appends it to cur.
func accumulateWordInto(desc *cratemap.Descriptor, cur *module.Data, w uint32) {
	switch desc.Firmware {
	case cratemap.FirmwareMdppScp, cratemap.FirmwareMdppQdc, cratemap.FirmwareMdppCsi:
		nchan := int(desc.NumChannelsOrBuses)
		isQdc := desc.Firmware == cratemap.FirmwareMdppQdc
		cur.AddItem(module.Item{
			Bus:     0,
			Channel: word.MdppChannel(w, nchan),
			Kind:    uint8(word.MdppKind(w, nchan, isQdc)),
			Datum:   word.MdppDatum(w),
			RawWord: w,
		})
	case cratemap.FirmwareVmmr:
		if word.IsVmmrTdcData(w) {
			cur.AddItem(module.Item{
				Bus:     word.VmmrBus(w),
				Channel: 0,
				Kind:    uint8(word.KindTdc),
				Datum:   word.VmmrTdcDatum(w),
				RawWord: w,
			})
			return
		}
		cur.AddItem(module.Item{
			Bus:     word.VmmrBus(w),
			Channel: word.VmmrAdcChannel(w),
			Kind:    uint8(word.KindAdc),
			Datum:   word.VmmrAdcDatum(w),
			RawWord: w,
		})
	case cratemap.FirmwareTgv, cratemap.FirmwareMvlcScaler:
		cur.AddRawWord(w)
	}
}

// endModule closes the module currently being read on an end-of-event
// marker, folding its data into the in-flight event if it produced any,
// then advances the readout state machine.
func (r *Reader) endModule() error {
	if !r.currentIsSentinel && r.current != nil && r.current.HasData() {
		ready := r.ev.AddModuleData(r.current)
		if !ready && r.current.Firmware == cratemap.FirmwareTgv {
			r.logger.Warn("mesytec: TGV timestamp not ready, zeroing")
			r.obs.TgvNotReady()
		}
	}
	r.current = nil
	r.currentDesc = nil
	r.machine.EndModule()
	r.machine.EndOfEvent()

	if r.machine.State() != readout.Complete {
		return nil
	}
	return r.treatCompleteEvent()
}

// treatCompleteEvent finalizes and dispatches the in-flight event. If the
// sink applies backpressure, the event is preserved and
// storingLastCompleteEvent is set; the caller's walk loop stops.
func (r *Reader) treatCompleteEvent() error {
	if !r.ev.HasData() {
		r.obs.EventDroppedEmpty()
		r.ev.Reset(r.ev.EventNumber)
		r.machine.Reset()
		return nil
	}

	result, err := r.sink(r.ev, r.crate)
	if err != nil {
		return &SinkAbortedError{Err: err}
	}
	if result == FullRetryLater {
		r.storingLastCompleteEvent = true
		r.obs.SinkBackpressure()
		return nil
	}

	r.storingLastCompleteEvent = false
	r.totalEventsParsed++
	r.eventsParsedThisCall++
	r.obs.EventParsed()
	r.ev.Reset(r.ev.EventNumber + 1)
	r.machine.Reset()
	return nil
}

// cleanupLastCompleteEvent re-offers a previously refused event to the
// sink before the walk resumes. Returns done=false if the sink refuses it
// again.
func (r *Reader) cleanupLastCompleteEvent() (done bool, err error) {
	result, err := r.sink(r.ev, r.crate)
	if err != nil {
		return false, &SinkAbortedError{Err: err}
	}
	if result == FullRetryLater {
		r.obs.SinkBackpressure()
		return false, nil
	}
	r.storingLastCompleteEvent = false
	r.totalEventsParsed++
	r.eventsParsedThisCall++
	r.obs.EventParsed()
	r.ev.Reset(r.ev.EventNumber + 1)
	r.machine.Reset()
	return true, nil
}
