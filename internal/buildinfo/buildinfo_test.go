package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestBuildInfo(t *testing.T) {
	info := BuildInfo()
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if info[k] == "" {
			t.Errorf("BuildInfo()[%q] is empty", k)
		}
	}
	if info["go_version"] != runtime.Version() {
		t.Errorf("go_version = %q, want %q", info["go_version"], runtime.Version())
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "letterbox "+Version) {
		t.Errorf("String() = %q", s)
	}
}

func TestUserAgent(t *testing.T) {
	if ua := UserAgent(); ua != "letterbox/"+Version {
		t.Errorf("UserAgent() = %q", ua)
	}
}
