package box

import "testing"

func TestChunkSet(t *testing.T) {
	cs := newChunkSet(20)

	for _, i := range []int{0, 3, 19} {
		if cs.has(i) {
			t.Fatalf("bit %d should start clear", i)
		}
	}

	cs.set(3)
	cs.set(19)
	if cs.count(20) != 2 {
		t.Fatalf("expected 2 bits set, got %d", cs.count(20))
	}
	if !cs.has(3) || !cs.has(19) {
		t.Fatal("set bits not reported by has")
	}

	// setting the same bit twice must not double count
	cs.set(3)
	if cs.count(20) != 2 {
		t.Fatalf("setting an already-set bit changed the count: %d", cs.count(20))
	}

	cs.clear()
	if cs.count(20) != 0 {
		t.Fatalf("expected 0 bits after clear, got %d", cs.count(20))
	}
}
