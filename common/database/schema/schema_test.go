package schema

import (
	"testing"
	"time"
)

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 3}, {Version: 1}, {Version: 2}}
	applied := map[int]time.Time{1: time.Now()}

	got := Pending(migrations, applied)
	if len(got) != 2 || got[0].Version != 2 || got[1].Version != 3 {
		t.Errorf("Pending = %+v, want versions 2, 3", got)
	}

	if got := Pending(migrations, map[int]time.Time{1: {}, 2: {}, 3: {}}); len(got) != 0 {
		t.Errorf("Pending with everything applied = %+v", got)
	}
}

func TestLatest(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 3}, {Version: 2}}

	cases := []struct {
		name    string
		applied map[int]time.Time
		want    int
		wantOK  bool
	}{
		{"none applied", map[int]time.Time{}, 0, false},
		{"first only", map[int]time.Time{1: {}}, 1, true},
		{"highest wins", map[int]time.Time{1: {}, 2: {}, 3: {}}, 3, true},
		{"unknown versions ignored", map[int]time.Time{2: {}, 9: {}}, 2, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Latest(migrations, c.applied)
			if ok != c.wantOK || (ok && got.Version != c.want) {
				t.Errorf("Latest = %d, %v; want %d, %v", got.Version, ok, c.want, c.wantOK)
			}
		})
	}
}
