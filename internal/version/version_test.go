package version

import "testing"

func TestVersionStrings(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild })

	Version, Commit, BuildTime = "1.2.3", "abc1234", "2026-10-01T00:00:00Z"

	if got := String(); got != "1.2.3 (abc1234) built 2026-10-01T00:00:00Z" {
		t.Errorf("String() = %q", got)
	}
	if got := UserAgent("notifywatch"); got != "notifywatch/1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if info := Get(); info.Version != "1.2.3" || info.Commit != "abc1234" {
		t.Errorf("Get() = %+v", info)
	}
}
