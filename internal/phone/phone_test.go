package phone

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"5585992403672@s.whatsapp.net", "5585992403672"},
		{"5585992403672@c.us", "5585992403672"},
		{"5585992403672:3@s.whatsapp.net", "5585992403672"},
		{"+55 (85) 99240-3672", "5585992403672"},
		{"5585992403672", "5585992403672"},
		{"@s.whatsapp.net", ""},
		{"", ""},
		{"abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"5585992403672@s.whatsapp.net", "+55 85 99240-3672", true},
		{"5585992403672:0@s.whatsapp.net", "5585992403672@c.us", true},
		{"5585992403672", "5585992403673", false},
		{"", "", false},
		{"abc", "def", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.a, tt.b); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestChatID(t *testing.T) {
	if got := ChatID("+55 85 99240-3672"); got != "5585992403672@s.whatsapp.net" {
		t.Errorf("ChatID = %q", got)
	}
	if got := ChatID("no digits"); got != "" {
		t.Errorf("ChatID on empty core = %q, want empty", got)
	}
}

func TestIsGroup(t *testing.T) {
	if !IsGroup("120363123456@g.us") {
		t.Error("group JID not detected")
	}
	if IsGroup("5585992403672@s.whatsapp.net") {
		t.Error("user JID detected as group")
	}
}
