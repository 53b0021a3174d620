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
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/cratemap"
	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/event"
)

// SinkResult tells the reader what to do with the event it just offered to
// a Sink. A bounded downstream (a full publish queue, a file nearing its
// roll size) returns FullRetryLater instead of raising an error; the
// reader treats that as first-class control flow rather than a failure.
type SinkResult uint8

const (
	// Accepted means the sink is done with the event; the reader may
	// proceed to the next one.
	Accepted SinkResult = iota
	// FullRetryLater means the sink could not accept the event right now;
	// the reader preserves it and re-offers it on the next call.
	FullRetryLater
)

// Sink receives one complete event along with read-only access to the
// crate map that describes it. Returning a non-nil error — other than via
// FullRetryLater — aborts the current ReadBuffer call. The reader resets
// and reuses the same Event once the sink has accepted it, so a sink that
// keeps any part of the event beyond the call must copy it.
type Sink func(ev *event.Event, crate *cratemap.Map) (SinkResult, error)
