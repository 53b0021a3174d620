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
	"fmt"
	"io"

	"github.com/USA-RedDragon/mesytec-mvlc-collator/internal/mesytec/word"
)

// DumpBuffer renders a window of wordsBefore/wordsAfter words around
// cursorWord (a word index, not a byte offset) to w, one word per line in
// hex with a short classification, and a bracket marking the cursor. It is
// a diagnostic used to annotate failures from the error-handling
// collaborator and is never called on the hot path.
func DumpBuffer(w io.Writer, buf []byte, cursorWord, wordsBefore, wordsAfter int, annotation string) {
	total := len(buf) / 4
	start := cursorWord - wordsBefore
	if start < 0 {
		start = 0
	}
	end := cursorWord + wordsAfter
	if end > total {
		end = total
	}

	if annotation != "" {
		fmt.Fprintf(w, "# %s\n", annotation)
	}
	for i := start; i < end; i++ {
		wd := word.ReadWord(buf[i*4:])
		marker := "  "
		if i == cursorWord {
			marker = "->"
		}
		fmt.Fprintf(w, "%s [%5d] %08x  %s\n", marker, i, wd, classify(wd))
	}
}

func classify(w uint32) string {
	switch {
	case word.IsFrameHeader(w):
		return fmt.Sprintf("frame-header type=%#x", word.FrameHeaderType(w))
	case word.IsModuleHeader(w):
		return fmt.Sprintf("module-header id=%#02x", word.ModuleID(w))
	case word.IsEndOfEventTGV(w):
		return "end-of-event (tgv/scaler)"
	case word.IsEndOfEvent(w):
		return "end-of-event"
	case word.IsFillWord(w):
		return "fill"
	case word.IsExtendedTimestamp(w):
		return "extended-timestamp"
	case word.IsMdppOrVmmrAdcData(w):
		return "mdpp/vmmr-adc data"
	case word.IsVmmrTdcData(w):
		return "vmmr-tdc data"
	default:
		return "unclassified"
	}
}
