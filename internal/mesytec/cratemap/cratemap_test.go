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

package cratemap_test

import (
	"strings"
	"testing"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
)

const sampleCrateMap = `
mdpp0,0x00,16,MDPP_QDC
vmmr0,0x10,8,VMMR
tgv0,0x20,0,TGV
scaler0,0x21,0,MVLC_SCALER
start,0xF0,0,START_READOUT
end,0xF1,0,END_READOUT
`

const sampleDetectors = `
0x00,0,det_a
0x00,1,det_b
0x10,0,0,paddle_0
0x10,3,5,paddle_35
`

func buildSample(t *testing.T) *cratemap.Map {
	t.Helper()
	b, err := cratemap.LoadCrateMapFile(strings.NewReader(sampleCrateMap), "cratemap.txt")
	if err != nil {
		t.Fatalf("LoadCrateMapFile: %v", err)
	}
	if err := cratemap.LoadDetectorCorrespondenceFile(b, strings.NewReader(sampleDetectors), "detectors.txt"); err != nil {
		t.Fatalf("LoadDetectorCorrespondenceFile: %v", err)
	}
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func TestBuildAssignsDetectorNames(t *testing.T) {
	t.Parallel()
	m := buildSample(t)

	if !m.HasModule(0x00) {
		t.Fatal("expected module 0x00 to be registered")
	}
	if got := m.DetectorName(0x00, 0, 0); got != "det_a" {
		t.Errorf("expected det_a, got %q", got)
	}
	if got := m.DetectorName(0x10, 3, 5); got != "paddle_35" {
		t.Errorf("expected paddle_35, got %q", got)
	}
}

func TestBuildSynthesizesUnassignedNames(t *testing.T) {
	t.Parallel()
	m := buildSample(t)
	if got := m.DetectorName(0x00, 0, 15); got != "bus_0_chan_15" {
		t.Errorf("expected synthesized name, got %q", got)
	}
}

func TestStartEndReadoutIDs(t *testing.T) {
	t.Parallel()
	m := buildSample(t)
	if m.StartReadoutID() != 0xF0 {
		t.Errorf("expected start id 0xf0, got %#x", m.StartReadoutID())
	}
	if m.EndReadoutID() != 0xF1 {
		t.Errorf("expected end id 0xf1, got %#x", m.EndReadoutID())
	}
	if m.HasModule(m.StartReadoutID()) {
		t.Error("sentinel ids must not be registered as modules")
	}
}

func TestGetUnknownModule(t *testing.T) {
	t.Parallel()
	m := buildSample(t)
	if _, err := m.Get(0x99); err == nil {
		t.Fatal("expected an error for an unregistered module id")
	}
}

func TestNumberOfModules(t *testing.T) {
	t.Parallel()
	m := buildSample(t)
	if m.NumberOfModules() != 4 {
		t.Errorf("expected 4 modules, got %d", m.NumberOfModules())
	}
}

func TestMalformedRowReportsLineNumber(t *testing.T) {
	t.Parallel()
	bad := "good,0x00,16,MDPP_QDC\nbroken row without enough fields\n"
	_, err := cratemap.LoadCrateMapFile(strings.NewReader(bad), "cratemap.txt")
	if err == nil {
		t.Fatal("expected an error for a malformed row")
	}
	var malformed *cratemap.MalformedFileError
	if !asMalformed(err, &malformed) {
		t.Fatalf("expected a MalformedFileError, got %T: %v", err, err)
	}
	if malformed.Line != 2 {
		t.Errorf("expected line 2, got %d", malformed.Line)
	}
}

func TestUnknownFirmwareTagIsRejected(t *testing.T) {
	t.Parallel()
	_, err := cratemap.LoadCrateMapFile(strings.NewReader("weird,0x00,16,NOT_A_REAL_FIRMWARE\n"), "cratemap.txt")
	if err == nil {
		t.Fatal("expected an error for an unknown firmware tag")
	}
}

func TestMdppRejectsBadChannelCount(t *testing.T) {
	t.Parallel()
	_, err := cratemap.LoadCrateMapFile(strings.NewReader("mdpp0,0x00,24,MDPP_SCP\n"), "cratemap.txt")
	if err == nil {
		t.Fatal("expected an error for an MDPP module with an invalid channel count")
	}
}

func TestDetectorRowForUnknownModuleIsRejected(t *testing.T) {
	t.Parallel()
	b, err := cratemap.LoadCrateMapFile(strings.NewReader(sampleCrateMap), "cratemap.txt")
	if err != nil {
		t.Fatalf("LoadCrateMapFile: %v", err)
	}
	err = cratemap.LoadDetectorCorrespondenceFile(b, strings.NewReader("0x77,0,ghost\n"), "detectors.txt")
	if err == nil {
		t.Fatal("expected an error referencing an unregistered module id")
	}
}

func TestBuildRequiresBothSentinels(t *testing.T) {
	t.Parallel()
	b, err := cratemap.LoadCrateMapFile(strings.NewReader("mdpp0,0x00,16,MDPP_SCP\n"), "cratemap.txt")
	if err != nil {
		t.Fatalf("LoadCrateMapFile: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected Build to fail without START_READOUT/END_READOUT sentinels")
	}
}

func asMalformed(err error, target **cratemap.MalformedFileError) bool {
	if m, ok := err.(*cratemap.MalformedFileError); ok {
		*target = m
		return true
	}
	return false
}
