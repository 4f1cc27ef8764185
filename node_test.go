package asebalink

import "testing"

func newTestNode(t *testing.T) *RemoteNode {
	t.Helper()
	n := NewRemoteNode(5, 5)
	n.NumNamedVar = 3
	if err := n.AddVariable("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := n.AddVariable("b", 4); err != nil {
		t.Fatal(err)
	}
	if err := n.AddVariable("c", 2); err != nil {
		t.Fatal(err)
	}
	n.ResetVarData()
	return n
}

func TestScalarArrayRoundTrip(t *testing.T) {
	n := newTestNode(t)

	if _, _, err := n.SetScalar("a", 7, 0); err != nil {
		t.Fatal(err)
	}
	got, err := n.GetScalar("a", 0)
	if err != nil || got != 7 {
		t.Fatalf("GetScalar = (%d, %v), want (7, nil)", got, err)
	}

	if _, _, err := n.SetArray("b", []int16{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	arr, err := n.GetArray("b")
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{1, 2, 3, 4}
	for i := range want {
		if arr[i] != want[i] {
			t.Fatalf("GetArray(b) = %v, want %v", arr, want)
		}
	}
}

func TestUnknownNameError(t *testing.T) {
	n := newTestNode(t)
	if _, err := n.GetScalar("nope", 0); err == nil {
		t.Fatalf("expected ErrUnknownName")
	}
}

// TestDataSpanForVariablesCorrectedFormula exercises the fix documented in
// SPEC_FULL.md §4.2: a later-added variable with a lower offset must not
// truncate the span's length. Catalog: a@0(1), b@1(4), c@5(2); span over
// {b, c} must be (1, 6), not a shorter value from naive accumulation.
func TestDataSpanForVariablesCorrectedFormula(t *testing.T) {
	n := newTestNode(t)

	offset, length, err := n.dataSpanForVariables(map[string]struct{}{"b": {}, "c": {}})
	if err != nil {
		t.Fatal(err)
	}
	if offset != 1 || length != 6 {
		t.Fatalf("span = (%d, %d), want (1, 6)", offset, length)
	}

	offset, length, err = n.dataSpanForVariables(map[string]struct{}{"a": {}, "c": {}})
	if err != nil {
		t.Fatal(err)
	}
	if offset != 0 || length != 7 {
		t.Fatalf("span = (%d, %d), want (0, 7)", offset, length)
	}
}

func TestSetVarDataMarksReceivedAtWindowEnd(t *testing.T) {
	n := newTestNode(t)
	n.expectedVarEnd = 5 // a(1) + b(4)

	n.setVarData(0, []int16{9})
	if n.varReceived {
		t.Fatalf("varReceived = true after partial window, want false")
	}

	n.setVarData(1, []int16{1, 2, 3, 4})
	if !n.varReceived {
		t.Fatalf("varReceived = false after window completed, want true")
	}
}

func TestVariableDescriptions(t *testing.T) {
	n := newTestNode(t)
	descs := n.VariableDescriptions()
	if len(descs) != 3 {
		t.Fatalf("len(descs) = %d, want 3", len(descs))
	}
	if descs[0].Name != "a" || descs[0].Offset != 0 || descs[0].Size != 1 {
		t.Fatalf("descs[0] = %+v", descs[0])
	}
	if descs[1].Name != "b" || descs[1].Offset != 1 || descs[1].Size != 4 {
		t.Fatalf("descs[1] = %+v", descs[1])
	}
}
