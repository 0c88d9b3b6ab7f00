package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRequestEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	in := Event{
		Timestamp:  ts,
		SessionID:  "sess-1",
		Direction:  DirectionOut,
		Layer:      LayerTransport,
		Category:   CategoryMessage,
		InstanceID: "inst-1",
		DeviceID:   "dev-1",
		Request: &RequestEvent{
			Operation: "updateInterests",
			Attempt:   2,
			Interests: []string{"a", "b"},
		},
	}

	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}

	if !out.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v (nanosecond precision)", out.Timestamp, ts)
	}
	if out.Request == nil || out.Request.Operation != "updateInterests" || out.Request.Attempt != 2 {
		t.Errorf("Request = %+v", out.Request)
	}
	if out.Response != nil || out.StateChange != nil || out.Error != nil {
		t.Error("unset payloads should decode as nil")
	}
	if out.Operation() != "updateInterests" {
		t.Errorf("Operation() = %q", out.Operation())
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	e := Event{
		SessionID: "s",
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityInstance,
			OldState: "STARTING",
			NewState: "REGISTERED",
		},
	}
	a, err := EncodeEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("encoding is not deterministic")
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0xfe}); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{DirectionLocal.String(), "LOCAL"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerEngine.String(), "ENGINE"},
		{LayerApplication.String(), "APPLICATION"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryNotification.String(), "NOTIFICATION"},
		{CategoryError.String(), "ERROR"},
		{StateEntityInstance.String(), "INSTANCE"},
		{StateEntityInterests.String(), "INTERESTS"},
		{StateEntityUser.String(), "USER"},
		{NotificationSubscriptionsChanged.String(), "SUBSCRIPTIONS_CHANGED"},
		{NotificationOpCompleted.String(), "OP_COMPLETED"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}
