package chat

import "testing"

func TestHasExactly(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  []string
		match bool
	}{
		{"same pair", []string{"a", "b"}, []string{"a", "b"}, true},
		{"reversed", []string{"b", "a"}, []string{"a", "b"}, true},
		{"extra participant", []string{"a", "b", "c"}, []string{"a", "b"}, false},
		{"missing participant", []string{"a"}, []string{"a", "b"}, false},
		{"different peer", []string{"a", "c"}, []string{"a", "b"}, false},
		{"self conversation", []string{"a"}, []string{"a", "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Conversation{ID: "c", ParticipantIDs: tt.parts}
			if got := c.HasExactly(tt.want...); got != tt.match {
				t.Errorf("HasExactly(%v) on %v = %v, want %v", tt.want, tt.parts, got, tt.match)
			}
		})
	}
}

func TestLocalIDs(t *testing.T) {
	id := NewLocalID()
	if !IsLocalID(id) {
		t.Errorf("NewLocalID() = %q does not carry the local prefix", id)
	}
	if id == NewLocalID() {
		t.Error("local ids should be unique")
	}
	if (Message{ID: "65f0c2a1"}).IsLocal() {
		t.Error("server id reported as local")
	}
}

func TestSessionValid(t *testing.T) {
	if (Session{UserID: "u1"}).Valid() {
		t.Error("session without token should be invalid")
	}
	if !(Session{UserID: "u1", Token: "t"}).Valid() {
		t.Error("complete session should be valid")
	}
}
