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

package reader_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/reader"
)

// s1CrateMap builds the crate map shared by S1/S2/S3/S4: module 0x00 is a
// 16-channel MDPP-SCP, module 0x01 is TGV, start/end sentinels are
// 0xF0/0xF1.
func s1CrateMap(t *testing.T) *cratemap.Map {
	t.Helper()
	b, err := cratemap.LoadCrateMapFile(strings.NewReader(
		"mdpp0,0x00,16,MDPP_SCP\ntgv0,0x01,0,TGV\nstart,0xF0,0,START_READOUT\nend,0xF1,0,END_READOUT\n"),
		"cratemap.txt")
	if err != nil {
		t.Fatalf("LoadCrateMapFile: %v", err)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

// words packs a sequence of uint32 words into a little-endian byte buffer.
func words(ws ...uint32) []byte {
	buf := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

// snapshot copies ev, including its exported slices, because the reader
// resets and reuses the same Event as soon as the sink returns.
func snapshot(ev *event.Event) *event.Event {
	cp := *ev
	cp.Channels = append([]event.ChannelDatum(nil), ev.Channels...)
	cp.ScalerWords = append([]uint32(nil), ev.ScalerWords...)
	return &cp
}

func acceptAll(delivered *[]*event.Event) reader.Sink {
	return func(ev *event.Event, _ *cratemap.Map) (reader.SinkResult, error) {
		*delivered = append(*delivered, snapshot(ev))
		return reader.Accepted, nil
	}
}

func TestS1SingleMdppEvent(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	buf := words(0xF3000008, 0x40F00000, 0xC0000000, 0x4000000A, 0x10020123, 0x10030456, 0xC0000001, 0x40F10000, 0xC0000000)
	n, err := r.ReadBuffer(buf)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event dispatched, got %d", n)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected 1 event delivered to sink, got %d", len(delivered))
	}
	ev := delivered[0]
	if len(ev.Channels) != 2 {
		t.Fatalf("expected 2 channel data, got %d", len(ev.Channels))
	}
	if ev.Channels[0].Channel != 2 || ev.Channels[0].Datum != 0x0123 {
		t.Errorf("unexpected first channel datum: %+v", ev.Channels[0])
	}
	if ev.Channels[1].Channel != 3 || ev.Channels[1].Datum != 0x0456 {
		t.Errorf("unexpected second channel datum: %+v", ev.Channels[1])
	}
	if ev.TgvTsLo != 0 || ev.TgvTsMid != 0 || ev.TgvTsHi != 0 {
		t.Errorf("expected zero TGV timestamps, got lo=%#x mid=%#x hi=%#x", ev.TgvTsLo, ev.TgvTsMid, ev.TgvTsHi)
	}
	if ev.EventNumber != 0 {
		t.Errorf("expected event counter 0, got %d", ev.EventNumber)
	}
}

func tgvTailWords(readyWord uint32) []uint32 {
	return []uint32{0x40010004, readyWord, 0x0000BEEF, 0x0000CAFE, 0x0000F00D, 0xC0000000}
}

func TestS2TGVReady(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	ws := []uint32{0xF3000008, 0x40F00000, 0xC0000000, 0x4000000A, 0x10020123, 0x10030456, 0xC0000001}
	ws = append(ws, tgvTailWords(0x00000004)...)
	ws = append(ws, 0x40F10000, 0xC0000000)

	if _, err := r.ReadBuffer(words(ws...)); err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected 1 event, got %d", len(delivered))
	}
	ev := delivered[0]
	if ev.TgvTsLo != 0xBEEF || ev.TgvTsMid != 0xCAFE || ev.TgvTsHi != 0xF00D {
		t.Errorf("unexpected timestamps: lo=%#x mid=%#x hi=%#x", ev.TgvTsLo, ev.TgvTsMid, ev.TgvTsHi)
	}
}

func TestS3TGVNotReady(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	ws := []uint32{0xF3000008, 0x40F00000, 0xC0000000, 0x4000000A, 0x10020123, 0x10030456, 0xC0000001}
	ws = append(ws, tgvTailWords(0x00000000)...)
	ws = append(ws, 0x40F10000, 0xC0000000)

	if _, err := r.ReadBuffer(words(ws...)); err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected sink invoked once, got %d", len(delivered))
	}
	ev := delivered[0]
	if ev.TgvTsLo != 0 || ev.TgvTsMid != 0 || ev.TgvTsHi != 0 {
		t.Errorf("expected all-zero timestamps, got lo=%#x mid=%#x hi=%#x", ev.TgvTsLo, ev.TgvTsMid, ev.TgvTsHi)
	}
}

// singleMdppEventWords returns one complete S1-shaped event's words using
// datum as the sole channel's payload, to build distinguishable events for
// the backpressure / split-buffer tests.
func singleMdppEventWords(datum uint16) []uint32 {
	return []uint32{0x40F00000, 0xC0000000, 0x4000000A, 0x10020000 | uint32(datum), 0xC0000001, 0x40F10000, 0xC0000000}
}

func TestS4SinkBackpressure(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)

	var delivered []*event.Event
	refuseSecond := 0
	sink := func(ev *event.Event, _ *cratemap.Map) (reader.SinkResult, error) {
		refuseSecond++
		if refuseSecond == 2 {
			return reader.FullRetryLater, nil
		}
		delivered = append(delivered, ev)
		return reader.Accepted, nil
	}
	r := reader.New(crate, sink)

	call1 := append(singleMdppEventWords(1), singleMdppEventWords(2)...)
	n1, err := r.ReadBuffer(words(call1...))
	if err != nil {
		t.Fatalf("ReadBuffer call1: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected 1 event dispatched in call1, got %d", n1)
	}
	if !r.StoringLastCompleteEvent() {
		t.Fatal("expected storingLastCompleteEvent true after backpressure")
	}

	n2, err := r.ReadBuffer(nil)
	if err != nil {
		t.Fatalf("ReadBuffer call2: %v", err)
	}
	if n2 != 1 {
		t.Fatalf("expected the refused event to be redelivered in call2, got %d", n2)
	}
	if r.StoringLastCompleteEvent() {
		t.Fatal("expected storingLastCompleteEvent false after redelivery succeeds")
	}

	call3 := singleMdppEventWords(3)
	n3, err := r.ReadBuffer(words(call3...))
	if err != nil {
		t.Fatalf("ReadBuffer call3: %v", err)
	}
	if n3 != 1 {
		t.Fatalf("expected 1 event dispatched in call3, got %d", n3)
	}
	if len(delivered) != 3 {
		t.Fatalf("expected 3 events delivered overall, got %d", len(delivered))
	}
}

func TestS5SplitAcrossBuffers(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	ws := []uint32{0xF3000008, 0x40F00000, 0xC0000000, 0x4000000A, 0x10020123, 0x10030456, 0xC0000001}
	ws = append(ws, tgvTailWords(0x00000004)...)
	ws = append(ws, 0x40F10000, 0xC0000000)
	full := words(ws...)

	// Cut between the MDPP's second data word and its end-of-event word.
	cut := 6 * 4
	first, second := full[:cut], full[cut:]

	if _, err := r.ReadBuffer(first); err != nil {
		t.Fatalf("ReadBuffer first half: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected no event delivered after the first half, got %d", len(delivered))
	}
	if _, err := r.ReadBuffer(second); err != nil {
		t.Fatalf("ReadBuffer second half: %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected exactly 1 event delivered once both halves are fed, got %d", len(delivered))
	}
	ev := delivered[0]
	if ev.TgvTsLo != 0xBEEF || ev.TgvTsMid != 0xCAFE || ev.TgvTsHi != 0xF00D {
		t.Errorf("unexpected timestamps after split feed: lo=%#x mid=%#x hi=%#x", ev.TgvTsLo, ev.TgvTsMid, ev.TgvTsHi)
	}
}

func TestS6EmptyEvent(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	n, err := r.ReadBuffer(words(0x40F00000, 0xC0000000, 0x40F10000, 0xC0000000))
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 events dispatched for an empty readout cycle, got %d", n)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected 0 sink invocations, got %d", len(delivered))
	}
	if r.TotalEventsParsed() != 0 {
		t.Fatalf("expected total_events_parsed unchanged, got %d", r.TotalEventsParsed())
	}
}

func TestBufferNotAlignedIsRejected(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	r := reader.New(crate, acceptAll(&[]*event.Event{}))
	if _, err := r.ReadBuffer([]byte{0x00, 0x01, 0x02}); err != reader.ErrBufferNotAligned {
		t.Fatalf("expected ErrBufferNotAligned, got %v", err)
	}
}

func TestUnknownModuleIDIsIgnored(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	// Module 0x55 is not in the crate map; its header should be dropped,
	// and the readout cycle should still complete normally afterward.
	n, err := r.ReadBuffer(words(0x40F00000, 0x40550000, 0x4000000A, 0x10020001, 0xC0000001, 0x40F10000, 0xC0000000))
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 event dispatched, got %d", n)
	}
	if len(delivered[0].Channels) != 1 {
		t.Fatalf("expected 1 channel datum (the unknown module contributed none), got %d", len(delivered[0].Channels))
	}
}

func TestCounterMonotonicity(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	ws := append(singleMdppEventWords(1), singleMdppEventWords(2)...)
	ws = append(ws, singleMdppEventWords(3)...)
	if _, err := r.ReadBuffer(words(ws...)); err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(delivered) != 3 {
		t.Fatalf("expected 3 events, got %d", len(delivered))
	}
	for i := 1; i < len(delivered); i++ {
		if delivered[i].EventNumber <= delivered[i-1].EventNumber {
			t.Fatalf("expected strictly increasing event numbers, got %d then %d", delivered[i-1].EventNumber, delivered[i].EventNumber)
		}
	}
}

func TestResetPurity(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)
	var delivered []*event.Event
	r := reader.New(crate, acceptAll(&delivered))

	if _, err := r.ReadBuffer(words(singleMdppEventWords(1)...)); err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	r.Reset()
	if r.TotalEventsParsed() != 0 || r.StoringLastCompleteEvent() {
		t.Fatal("expected Reset to zero counters and clear the backpressure flag")
	}

	delivered = nil
	if _, err := r.ReadBuffer(words(singleMdppEventWords(9)...)); err != nil {
		t.Fatalf("ReadBuffer after reset: %v", err)
	}
	if len(delivered) != 1 || delivered[0].EventNumber != 0 {
		t.Fatalf("expected a fresh reader's first event to be numbered 0, got %+v", delivered)
	}
}

func TestReadEventInBufferV1RoundTrip(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)

	// Produce an event the core way, through the main buffer walk, then
	// serialize it and feed the result back through the single-event
	// entry point — the result must decode to the same channel data.
	var produced []*event.Event
	r := reader.New(crate, acceptAll(&produced))
	buf := words(0xF3000008, 0x40F00000, 0xC0000000, 0x4000000A, 0x10020123, 0x10030456, 0xC0000001, 0x40F10000, 0xC0000000)
	if _, err := r.ReadBuffer(buf); err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if len(produced) != 1 {
		t.Fatalf("expected 1 event produced, got %d", len(produced))
	}
	original := produced[0]

	var got *event.Event
	sink := func(ev *event.Event, _ *cratemap.Map) (reader.SinkResult, error) {
		got = ev
		return reader.Accepted, nil
	}

	ev, result, err := reader.ReadEventInBufferV1(original.Serialize(), crate, original.EventNumber, sink)
	if err != nil {
		t.Fatalf("ReadEventInBufferV1: %v", err)
	}
	if result != reader.Accepted {
		t.Fatalf("expected Accepted, got %v", result)
	}
	if got != ev {
		t.Fatal("expected the sink to receive the same event the function returned")
	}
	if diff := cmp.Diff(original.Channels, ev.Channels); diff != "" {
		t.Errorf("round-tripped channels mismatch (-want +got):\n%s", diff)
	}
}

func TestReadEventInBufferV0ClosesOnFrameHeader(t *testing.T) {
	t.Parallel()
	crate := s1CrateMap(t)

	// v0 bug-compatibility: a framing-header word shares the
	// end-of-event bit pattern, so it closes the current module just
	// like a proper end-of-event marker would.
	buf := words(0x4000000A, 0x10020123, 0xF3000008)

	var got *event.Event
	sink := func(ev *event.Event, _ *cratemap.Map) (reader.SinkResult, error) {
		got = ev
		return reader.Accepted, nil
	}

	ev, result, err := reader.ReadEventInBufferV0(buf, crate, 0, sink, nil)
	if err != nil {
		t.Fatalf("ReadEventInBufferV0: %v", err)
	}
	if result != reader.Accepted {
		t.Fatalf("expected Accepted, got %v", result)
	}
	if got != ev {
		t.Fatal("expected the sink to receive the same event the function returned")
	}
	if len(ev.Channels) != 1 {
		t.Fatalf("expected 1 channel datum, got %d", len(ev.Channels))
	}
}
