package compiler

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xyproto/bfjit/internal/diag"
)

func scanAll(t *testing.T, src string) []Operation {
	t.Helper()
	sc := NewScanner(strings.NewReader(src))
	var ops []Operation
	for {
		op, err := sc.Next()
		if err == io.EOF {
			return ops
		}
		if err != nil {
			t.Fatal(err)
		}
		ops = append(ops, op)
	}
}

func TestScannerCollapsesRuns(t *testing.T) {
	got := scanAll(t, "++++++++>>--<[[..,,]]")
	type kc struct {
		Kind  Kind
		Count int
	}
	var simple []kc
	for _, op := range got {
		simple = append(simple, kc{op.Kind, op.Count})
	}
	want := []kc{
		{Add, 8}, {MoveRight, 2}, {Sub, 2}, {MoveLeft, 1},
		{LoopStart, 1}, {LoopStart, 1},
		{Output, 1}, {Output, 1}, {Input, 1}, {Input, 1},
		{LoopEnd, 1}, {LoopEnd, 1},
	}
	if diff := cmp.Diff(want, simple); diff != "" {
		t.Errorf("operations mismatch (-want +got):\n%s", diff)
	}
}

func TestScannerRunsStopAtComments(t *testing.T) {
	got := scanAll(t, "++ comment ++")
	if len(got) != 2 || got[0].Count != 2 || got[1].Count != 2 {
		t.Errorf("inert bytes should split runs: %+v", got)
	}
}

func TestScannerSkipsInertBytes(t *testing.T) {
	if ops := scanAll(t, "hello world\n\t#!"); len(ops) != 0 {
		t.Errorf("expected no operations, got %+v", ops)
	}
}

func TestScannerPositions(t *testing.T) {
	ops := scanAll(t, "x+\n  +++]")
	want := []diag.Position{
		{Line: 1, Column: 2, Offset: 1},
		{Line: 2, Column: 3, Offset: 5},
		{Line: 2, Column: 6, Offset: 8},
	}
	var got []diag.Position
	for _, op := range ops {
		got = append(got, op.Pos)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}
