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

package cmd

import (
	"fmt"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/metrics"
)

// recordModuleCounts increments the supplemented per-module event counter
// once for each distinct module that contributed a channel to ev. The
// reader.Observer interface only carries core parsing events, so this
// lives in the sink wiring rather than in the core reader.
func recordModuleCounts(ev *event.Event, crate *cratemap.Map, m *metrics.Metrics) {
	seen := make(map[uint8]bool)
	for _, ch := range ev.Channels {
		if seen[ch.ModuleID] {
			continue
		}
		seen[ch.ModuleID] = true
		if desc, err := crate.Get(ch.ModuleID); err == nil {
			m.RecordModuleEvent(desc.Name)
			continue
		}
		m.RecordModuleEvent(fmt.Sprintf("unknown_%#02x", ch.ModuleID))
	}
}
