package pathutil

import "testing"

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/", false},
		{"/about", false},
		{"/a/./b", true},
		{"/a/../b", true},
		{"..", true},
		{"/..hidden", false},
		{"/file.tar.gz", false},
	}
	for _, tt := range tests {
		if got := HasDotSegments(tt.in); got != tt.want {
			t.Fatalf("HasDotSegments(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPagePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"/", "/"},
		{"about", "/about"},
		{"/about/", "/about"},
		{" /media-kit// ", "/media-kit"},
		{"//group-companies", "/group-companies"},
		{"/a/../etc", ""},
		{"/a\\b", ""},
		{"/a\x00", ""},
	}
	for _, tt := range tests {
		if got := PagePath(tt.in); got != tt.want {
			t.Fatalf("PagePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
