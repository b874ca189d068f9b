package version

import (
	"runtime"
	"testing"
)

func TestString(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	defer func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild }()

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2024-03-01T00:00:00Z"

	want := "1.2.0 (abc1234) built 2024-03-01T00:00:00Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	info := Get()
	if info.Version != "1.2.0" || info.Commit != "abc1234" {
		t.Errorf("Get() = %+v, want version 1.2.0 commit abc1234", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}
