package device

import "testing"

func TestContextPoolReuse(t *testing.T) {
	ctx := NewContext()
	a := ctx.Get(4, 8)
	if a.Rows != 4 || a.Cols != 8 {
		t.Fatalf("expected shape 4x8, got %dx%d", a.Rows, a.Cols)
	}
	a.Data[0] = 42
	ctx.Put(a)
	b := ctx.Get(4, 8)
	if &b.Data[0] != &a.Data[0] {
		t.Error("expected pooled tensor to be reused")
	}
	if b.Data[0] != 0 {
		t.Errorf("expected reused tensor to be zeroed, got %f", b.Data[0])
	}
}

func TestContextPoolShapeIsolation(t *testing.T) {
	ctx := NewContext()
	a := ctx.Get(2, 3)
	ctx.Put(a)
	b := ctx.Get(3, 2)
	if &b.Data[0] == &a.Data[0] {
		t.Error("tensors of different shapes must not share storage")
	}
}

func TestContextFree(t *testing.T) {
	ctx := NewContext()
	before := AllocatedBytes()
	t1 := ctx.Get(16, 16)
	if AllocatedBytes() <= before {
		t.Error("expected allocation accounting to grow")
	}
	ctx.Put(t1)
	ctx.Free()
	if AllocatedBytes() != before {
		t.Errorf("expected accounting back to %d after Free, got %d", before, AllocatedBytes())
	}
}
