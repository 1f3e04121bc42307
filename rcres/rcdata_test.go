package rcres

import "testing"

func TestRcDataTableSetAddsAndReplaces(t *testing.T) {
	tbl := NewRcDataTable()
	tbl.Set(10, []byte("first"))
	if data, ok := tbl.Get(10); !ok || string(data) != "first" {
		t.Fatalf("Get(10) = %q, %v; want \"first\", true", data, ok)
	}
	tbl.Set(10, []byte("second"))
	if data, ok := tbl.Get(10); !ok || string(data) != "second" {
		t.Fatalf("Get(10) after replace = %q, %v; want \"second\", true", data, ok)
	}
	if _, ok := tbl.Get(99); ok {
		t.Fatal("Get(99) = true, want false for absent id")
	}
}

func TestRcDataTableIDsSorted(t *testing.T) {
	tbl := NewRcDataTable()
	tbl.Set(30, []byte("c"))
	tbl.Set(10, []byte("a"))
	tbl.Set(20, []byte("b"))
	ids := tbl.IDs()
	want := []uint32{10, 20, 30}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}
