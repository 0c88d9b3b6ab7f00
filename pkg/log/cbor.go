package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// An event log is a plain sequence of CBOR items, one per Event. Sessions
// append to the same file, and readers stream it item by item.
var (
	eventEnc = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	})
	eventDec = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("event log encoder: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("event log decoder: %v", err))
	}
	return m
}

// EncodeEvent returns ev as it is stored in an event log. Equal events
// encode to equal bytes.
func EncodeEvent(ev Event) ([]byte, error) {
	return eventEnc.Marshal(ev)
}

// DecodeEvent parses a single stored event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := eventDec.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

func newEventEncoder(w io.Writer) *cbor.Encoder {
	return eventEnc.NewEncoder(w)
}

func newEventDecoder(r io.Reader) *cbor.Decoder {
	return eventDec.NewDecoder(r)
}
