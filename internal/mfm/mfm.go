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

// Package mfm encodes a decoded event into a GANIL MFM frame: a 24-byte
// header (data source, frame type, TGV timestamp, event counter, payload
// length) followed by the event's serialized payload. It is a reference
// encoder for the layout spec.md documents but deliberately keeps out of
// internal/mesytec — the core reader hands a sink a decoded event, never
// an MFM frame.
package mfm

import (
	"encoding/binary"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
)

const (
	// HeaderSize is the fixed MFM header length in bytes.
	HeaderSize = 24

	blobFrameMarker = 0xC1
	dataSource      = 0x00
	frameType       = 0x4ADF
	frameRevision   = 0x01
)

// Encode renders ev as a complete MFM frame: header plus payload. The
// payload is ev's msgp-marshaled representation, the same wire format
// internal/mesytec/event exposes for any other structured consumer.
func Encode(ev *event.Event) ([]byte, error) {
	payload, err := ev.MarshalMsg(nil)
	if err != nil {
		return nil, err
	}
	return EncodeWithPayload(ev, payload), nil
}

// EncodeWithPayload renders the 24-byte MFM header for ev around a
// caller-supplied payload, without re-marshaling ev. Exposed for callers
// that already hold the raw mesytec buffer bytes and want those, rather
// than the msgp encoding, as the frame's payload; within this repository
// only Encode calls it.
func EncodeWithPayload(ev *event.Event, payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))

	frame[0] = blobFrameMarker
	frameSizeUnits := uint32(HeaderSize+len(payload)) / 2
	frame[1] = byte(frameSizeUnits)
	frame[2] = byte(frameSizeUnits >> 8)
	frame[3] = byte(frameSizeUnits >> 16)
	frame[4] = dataSource
	binary.LittleEndian.PutUint16(frame[5:7], frameType)
	frame[7] = frameRevision

	binary.LittleEndian.PutUint16(frame[8:10], ev.TgvTsLo)
	binary.LittleEndian.PutUint16(frame[10:12], ev.TgvTsMid)
	binary.LittleEndian.PutUint16(frame[12:14], ev.TgvTsHi)

	binary.LittleEndian.PutUint32(frame[14:18], uint32(ev.EventNumber))
	// frame[18:20] reserved, left zero.
	binary.LittleEndian.PutUint32(frame[20:24], uint32(len(payload)))

	copy(frame[HeaderSize:], payload)
	return frame
}
