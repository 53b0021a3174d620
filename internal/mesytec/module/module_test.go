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

package module_test

import (
	"testing"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/module"
)

func TestAddItemTracksCompletion(t *testing.T) {
	t.Parallel()
	d := module.New(0x40000102, 0x00, cratemap.FirmwareMdppQdc, 0, 2)
	if d.Done() {
		t.Fatal("expected not done with zero items consumed")
	}
	d.AddItem(module.Item{Bus: 0, Channel: 1, Datum: 100, RawWord: 0x10010064})
	if d.Done() {
		t.Fatal("expected not done after one of two words")
	}
	if d.Remaining() != 1 {
		t.Errorf("expected 1 remaining, got %d", d.Remaining())
	}
	d.AddItem(module.Item{Bus: 0, Channel: 2, Datum: 200, RawWord: 0x100200C8})
	if !d.Done() {
		t.Fatal("expected done after both words consumed")
	}
	if !d.HasData() {
		t.Fatal("expected HasData true")
	}
	if d.HeaderWord != 0x40000102 {
		t.Errorf("expected header word preserved, got %#x", d.HeaderWord)
	}
}

func TestRawWordsForTGV(t *testing.T) {
	t.Parallel()
	d := module.New(0x40200003, 0x20, cratemap.FirmwareTgv, 0, 3)
	d.AddRawWord(0xDEAD)
	d.AddRawWord(0xBEEF)
	d.AddRawWord(0x0001)
	if !d.Done() {
		t.Fatal("expected done after 3 raw words")
	}
	if len(d.RawWords) != 3 {
		t.Errorf("expected 3 raw words, got %d", len(d.RawWords))
	}
}

func TestClearResetsState(t *testing.T) {
	t.Parallel()
	d := module.New(0x40000101, 0x00, cratemap.FirmwareMdppScp, 0, 1)
	d.AddItem(module.Item{Bus: 0, Channel: 0, Datum: 5, RawWord: 0x10000005})
	d.Clear()
	if d.HasData() {
		t.Fatal("expected no data after Clear")
	}
	if d.AnnouncedLength != 0 {
		t.Errorf("expected AnnouncedLength reset to 0, got %d", d.AnnouncedLength)
	}
	if d.HeaderWord != 0 {
		t.Errorf("expected HeaderWord reset to 0, got %#x", d.HeaderWord)
	}
}

func TestEmptyModuleHasNoData(t *testing.T) {
	t.Parallel()
	d := module.New(0x40000100, 0x00, cratemap.FirmwareMdppScp, 0, 0)
	if !d.Done() {
		t.Fatal("expected a module with zero announced length to be immediately done")
	}
	if d.HasData() {
		t.Fatal("expected no data for an empty module")
	}
}

func TestSetHeaderReusesAccumulator(t *testing.T) {
	t.Parallel()
	d := module.New(0x40000101, 0x00, cratemap.FirmwareMdppScp, 0, 1)
	d.AddItem(module.Item{Bus: 0, Channel: 0, Datum: 5, RawWord: 0x10000005})

	d.SetHeader(0x40010202, 0x01, cratemap.FirmwareMdppQdc, 2, 2)
	if d.HasData() {
		t.Fatal("expected no leftover data after SetHeader reuse")
	}
	if d.ModuleID != 0x01 || d.Firmware != cratemap.FirmwareMdppQdc || d.Setting != 2 {
		t.Fatal("expected SetHeader to populate the new module's identity")
	}
	if d.HeaderWord != 0x40010202 {
		t.Errorf("expected new header word, got %#x", d.HeaderWord)
	}
	if d.AnnouncedLength != 2 {
		t.Errorf("expected new announced length, got %d", d.AnnouncedLength)
	}
}
