package symbol

import "testing"

func TestGetsymIdentity(t *testing.T) {
	table := NewTable()
	a := table.Getsym([]byte("hello"))
	b := table.Getsym([]byte("hello"))
	if a != b {
		t.Fatal("getsym(s) != getsym(t) for equal byte sequences")
	}
	c := table.Getsym([]byte("world"))
	if a == c {
		t.Fatal("getsym returned identical symbol for different bytes")
	}
}

func TestInternConcurrentSafe(t *testing.T) {
	table := NewTable()
	done := make(chan *Symbol, 32)
	for i := 0; i < 32; i++ {
		go func() {
			done <- table.Intern("shared")
		}()
	}
	first := <-done
	for i := 1; i < 32; i++ {
		if s := <-done; s != first {
			t.Fatal("concurrent Intern produced distinct Symbols for equal bytes")
		}
	}
}
