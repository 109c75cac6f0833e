package packet

import "testing"

func TestAppendRespectsCapacity(t *testing.T) {
	b := NewBatch(2)

	if !b.Append([]byte("a"), 1) {
		t.Fatal("first Append should succeed")
	}
	if !b.Append([]byte("b"), 2) {
		t.Fatal("second Append should succeed")
	}
	if b.Append([]byte("c"), 3) {
		t.Fatal("third Append should fail: batch is at capacity")
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if b.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", b.Remaining())
	}
}

func TestAppendCopiesData(t *testing.T) {
	b := NewBatch(1)
	data := []byte{1, 2, 3}
	b.Append(data, 0)

	data[0] = 0xFF
	if b.Packets[0].Data[0] == 0xFF {
		t.Fatal("Append aliased the caller's slice instead of copying it")
	}
}

func TestResetKeepsCapacity(t *testing.T) {
	b := NewBatch(4)
	b.Append([]byte("x"), 1)
	b.Append([]byte("y"), 2)
	b.Reset()

	if b.Len() != 0 {
		t.Fatalf("Len() = %d after Reset, want 0", b.Len())
	}
	if b.Capacity() != 4 {
		t.Fatalf("Capacity() = %d after Reset, want 4", b.Capacity())
	}
}
