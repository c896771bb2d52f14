package models

import (
	"testing"
	"time"
)

func TestEffectiveStatus(t *testing.T) {
	m := &Message{}
	if m.EffectiveStatus() != StatusSent {
		t.Errorf("EffectiveStatus of zero value = %q, want %q", m.EffectiveStatus(), StatusSent)
	}

	m.Status = StatusPending
	if m.EffectiveStatus() != StatusPending {
		t.Errorf("EffectiveStatus = %q, want %q", m.EffectiveStatus(), StatusPending)
	}
}

func TestMessageKey(t *testing.T) {
	confirmed := &Message{ServerID: "01ABC", ClientUUID: "cc1"}
	key := confirmed.Key()
	if key.Kind != KeyServer || key.Value != "01ABC" {
		t.Errorf("Key of confirmed message = %+v, want server key 01ABC", key)
	}

	provisional := &Message{ClientUUID: "cc1"}
	key = provisional.Key()
	if key.Kind != KeyClient || key.Value != "cc1" {
		t.Errorf("Key of provisional message = %+v, want client key cc1", key)
	}
}

func TestSameMessage(t *testing.T) {
	tests := []struct {
		name string
		a, b Message
		want bool
	}{
		{
			name: "matching server ids",
			a:    Message{ServerID: "01ABC"},
			b:    Message{ServerID: "01ABC", ClientUUID: "cc9"},
			want: true,
		},
		{
			name: "matching client uuids",
			a:    Message{ClientUUID: "cc1"},
			b:    Message{ServerID: "01ABC", ClientUUID: "cc1"},
			want: true,
		},
		{
			name: "no shared key",
			a:    Message{ClientUUID: "cc1"},
			b:    Message{ServerID: "01ABC"},
			want: false,
		},
		{
			name: "different server ids",
			a:    Message{ServerID: "01ABC"},
			b:    Message{ServerID: "01ABD"},
			want: false,
		},
		{
			name: "empty ids never match",
			a:    Message{},
			b:    Message{},
			want: false,
		},
	}

	for _, tt := range tests {
		if got := SameMessage(&tt.a, &tt.b); got != tt.want {
			t.Errorf("%s: SameMessage = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCompareMessages(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	earlier := Message{ServerID: "01AAA", Timestamp: t0}
	later := Message{ServerID: "01AAB", Timestamp: t1}
	if CompareMessages(&earlier, &later) >= 0 {
		t.Error("earlier timestamp should sort before later")
	}
	if CompareMessages(&later, &earlier) <= 0 {
		t.Error("later timestamp should sort after earlier")
	}

	// Same timestamp: server id breaks the tie.
	a := Message{ServerID: "01AAA", Timestamp: t0}
	b := Message{ServerID: "01AAB", Timestamp: t0}
	if CompareMessages(&a, &b) >= 0 {
		t.Error("lower server id should sort first on timestamp tie")
	}

	// Pending sorts after confirmed at the same timestamp.
	pending := Message{ClientUUID: "cc1", Timestamp: t0, Status: StatusPending}
	if CompareMessages(&pending, &a) <= 0 {
		t.Error("pending message should sort after confirmed at same timestamp")
	}
	if CompareMessages(&a, &pending) >= 0 {
		t.Error("confirmed message should sort before pending at same timestamp")
	}

	// Pending vs pending: client uuid keeps the order total.
	p2 := Message{ClientUUID: "cc2", Timestamp: t0, Status: StatusPending}
	if CompareMessages(&pending, &p2) >= 0 {
		t.Error("pending messages should order by client uuid")
	}

	same := Message{ServerID: "01AAA", Timestamp: t0}
	if CompareMessages(&a, &same) != 0 {
		t.Error("identical identity and timestamp should compare equal")
	}
}
