// Package snmprec writes engine snapshots in the snmprec line format
// consumed by SNMP simulation tooling: one OID|TAG|VALUE triple per line,
// in ascending numeric OID order. The tag is the value's type code; octet
// strings that are not printable ASCII are written hex-encoded under the
// "4x" variant tag.
package snmprec

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/netsimkit/ifsim/pkg/sim"
)

// Type tags for snmprec rows.
const (
	TagInteger        = "2"
	TagOctetString    = "4"
	TagOctetStringHex = "4x"
	TagObjectID       = "6"
	TagCounter32      = "65"
	TagGauge32        = "66"
	TagTimeTicks      = "67"
	TagCounter64      = "70"
)

// OID bases for the tables the engine serves.
const (
	oidIfNumber = "1.3.6.1.2.1.2.1.0"
	oidIfTable  = "1.3.6.1.2.1.2.2.1"
	oidIfXTable = "1.3.6.1.2.1.31.1.1.1"
)

// Writer emits snmprec lines to out.
type Writer struct {
	out io.Writer
}

// NewWriter returns a Writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Comment writes a "#"-prefixed header line.
func (w *Writer) Comment(text string) error {
	_, err := fmt.Fprintf(w.out, "# %s\n", text)
	return err
}

// Row writes one OID|TAG|VALUE line.
func (w *Writer) Row(oid, tag, value string) error {
	_, err := fmt.Fprintf(w.out, "%s|%s|%s\n", oid, tag, value)
	return err
}

// WriteEngine snapshots every registered interface and writes the full
// table walk: ifNumber first, then the ifTable columns, then the ifXTable
// columns, column-major with ascending interface indexes inside each
// column. The snapshots are taken per interface but each one is internally
// consistent.
func (w *Writer) WriteEngine(e *sim.Engine) error {
	indexes := e.Interfaces()
	states := make([]*sim.InterfaceState, 0, len(indexes))
	for _, idx := range indexes {
		st, err := e.InterfaceState(idx)
		if err != nil {
			return fmt.Errorf("snapshotting interface %d: %w", idx, err)
		}
		states = append(states, st)
	}

	if err := w.Comment(fmt.Sprintf("ifsim snapshot: %d interfaces, uptime %s", len(states), e.Uptime())); err != nil {
		return err
	}
	if err := w.Row(oidIfNumber, TagInteger, strconv.Itoa(len(states))); err != nil {
		return err
	}

	for _, attr := range sim.Attributes() {
		base := oidIfTable
		if attr.Extended() {
			base = oidIfXTable
		}
		for _, st := range states {
			oid := fmt.Sprintf("%s.%d.%d", base, attr.Column(), st.Index)
			tag, value := render(st.Attrs[attr])
			if err := w.Row(oid, tag, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// render maps a value to its snmprec tag and textual payload.
func render(v sim.Value) (tag, value string) {
	switch v.Type {
	case sim.TypeInteger:
		return TagInteger, strconv.FormatUint(v.Uint, 10)
	case sim.TypeCounter32:
		return TagCounter32, strconv.FormatUint(v.Uint, 10)
	case sim.TypeGauge32:
		return TagGauge32, strconv.FormatUint(v.Uint, 10)
	case sim.TypeTimeTicks:
		return TagTimeTicks, strconv.FormatUint(v.Uint, 10)
	case sim.TypeCounter64:
		return TagCounter64, strconv.FormatUint(v.Uint, 10)
	}
	if printableASCII(v.Str) {
		return TagOctetString, v.Str
	}
	return TagOctetStringHex, hex.EncodeToString([]byte(v.Str))
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
