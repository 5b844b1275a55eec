package rollup

import "testing"

func canyonTime(t uint64) *uint64 { return &t }

func TestIsCanyon(t *testing.T) {
	c := Config{CanyonTime: canyonTime(1000)}
	if c.IsCanyon(999) {
		t.Fatal("expected canyon inactive before activation time")
	}
	if !c.IsCanyon(1000) {
		t.Fatal("expected canyon active at activation time")
	}
	if !c.IsCanyon(1001) {
		t.Fatal("expected canyon active after activation time")
	}
}

func TestIsCanyonNilNeverActive(t *testing.T) {
	c := Config{}
	if c.IsCanyon(^uint64(0)) {
		t.Fatal("expected canyon inactive with no activation time configured")
	}
}

func TestTimeForBlock(t *testing.T) {
	c := Config{
		Genesis:   Genesis{L2: BlockID{Number: 100}, L2Time: 1000},
		BlockTime: 2,
	}
	if got := c.TimeForBlock(100); got != 1000 {
		t.Fatalf("TimeForBlock(genesis) = %d, want 1000", got)
	}
	if got := c.TimeForBlock(105); got != 1010 {
		t.Fatalf("TimeForBlock(105) = %d, want 1010", got)
	}
}
