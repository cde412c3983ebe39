package vision

import (
	"testing"
	"time"
)

func TestRect_Center(t *testing.T) {
	r := Rect{X: 10, Y: 20, W: 100, H: 50}
	cx, cy := r.Center()
	if cx != 60 || cy != 45 {
		t.Errorf("Center() = (%d, %d), want (60, 45)", cx, cy)
	}
}

func TestRegion_TrackEvictsOldest(t *testing.T) {
	reg := NewRegion("r1", Rect{X: 0, Y: 0, W: 10, H: 10}, 0.9, time.Now())
	reg.SetHistoryCap(3)

	for i := 0; i < 5; i++ {
		reg.Rect.X = i * 10
		reg.Track()
	}

	hist := reg.History()
	if len(hist) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(hist))
	}
	// oldest two entries evicted; centers of X=20,30,40 remain
	want := []Point{{X: 25, Y: 5}, {X: 35, Y: 5}, {X: 45, Y: 5}}
	for i, p := range hist {
		if p != want[i] {
			t.Errorf("History[%d] = %+v, want %+v", i, p, want[i])
		}
	}
}

func TestRegion_SetHistoryCapIgnoresInvalid(t *testing.T) {
	reg := NewRegion("r1", Rect{W: 10, H: 10}, 0.9, time.Now())
	reg.SetHistoryCap(0)
	reg.SetHistoryCap(-5)

	for i := 0; i < DefaultHistoryCap+5; i++ {
		reg.Track()
	}
	if n := len(reg.History()); n != DefaultHistoryCap {
		t.Errorf("len(History) = %d, want default cap %d", n, DefaultHistoryCap)
	}
}
