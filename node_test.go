package structgrade_test

import (
	"reflect"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/reoring/structgrade"
)

func TestCountsJSON(t *testing.T) {
	c := structgrade.Counts{TP: 3, FD: 1, FA: 2, FN: 4, TN: 5}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	// fp is emitted for readers but always derived from fa+fd.
	for _, frag := range []string{`"tp":3`, `"fp":3`, `"fd":1`, `"fa":2`, `"fn":4`, `"tn":5`} {
		if !strings.Contains(out, frag) {
			t.Fatalf("serialized counts %s missing %s", out, frag)
		}
	}

	var back structgrade.Counts
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != c {
		t.Fatalf("round trip %+v, want %+v", back, c)
	}

	// A tampered fp value cannot override the derivation.
	var forged structgrade.Counts
	if err := json.Unmarshal([]byte(`{"tp":1,"fp":99,"fd":1,"fa":0}`), &forged); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if forged.FP() != 1 {
		t.Fatalf("fp = %d, want the fa+fd derivation to win", forged.FP())
	}
}

func TestMatrixJSON(t *testing.T) {
	m := structgrade.Matrix{
		Counts:  structgrade.Counts{TP: 2, FN: 1},
		Derived: &structgrade.Derived{Precision: 1, Recall: 2.0 / 3, F1: 0.8, Accuracy: 2.0 / 3},
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"derived"`) {
		t.Fatalf("decorated matrix %s missing derived block", data)
	}

	var back structgrade.Matrix
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Counts != m.Counts || back.Derived == nil || !closeTo(back.Derived.F1, 0.8) {
		t.Fatalf("round trip %+v, want %+v", back, m)
	}

	bare, err := json.Marshal(structgrade.Matrix{Counts: m.Counts})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(bare), `"derived"`) {
		t.Fatalf("undecorated matrix %s must omit derived", bare)
	}
}

func TestNodeFlatten(t *testing.T) {
	n := &structgrade.Node{
		Overall: structgrade.Matrix{Counts: structgrade.Counts{TP: 1}},
		Fields: map[string]*structgrade.Node{
			"addr": {
				Overall: structgrade.Matrix{Counts: structgrade.Counts{TP: 1}},
				Fields: map[string]*structgrade.Node{
					"city": {Overall: structgrade.Matrix{Counts: structgrade.Counts{TP: 1}}},
					"zip":  {Overall: structgrade.Matrix{Counts: structgrade.Counts{FD: 1}}},
				},
			},
			"phone": {Overall: structgrade.Matrix{Counts: structgrade.Counts{FN: 1}}},
		},
	}

	dst := map[string]structgrade.Counts{}
	n.Flatten("", dst)
	want := map[string]structgrade.Counts{
		"":          {TP: 1},
		"addr":      {TP: 1},
		"addr.city": {TP: 1},
		"addr.zip":  {FD: 1},
		"phone":     {FN: 1},
	}
	if !reflect.DeepEqual(dst, want) {
		t.Fatalf("flattened %+v, want %+v", dst, want)
	}

	// Flattening a second document into the same map accumulates.
	n.Flatten("", dst)
	if dst["addr.zip"].FD != 2 {
		t.Fatalf("accumulation broken: %+v", dst["addr.zip"])
	}
}

func TestNodeJSONShape(t *testing.T) {
	n := &structgrade.Node{
		Overall:               structgrade.Matrix{Counts: structgrade.Counts{TP: 1}},
		ThresholdAppliedScore: 0.75,
		AllFieldsMatched:      false,
		NonMatches: []structgrade.NonMatch{
			{FieldPath: "phone", Outcome: structgrade.OutcomeFD, Similarity: 0.2, GroundTruth: "555-1", Prediction: "555-9"},
		},
	}
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, frag := range []string{
		`"overall"`, `"threshold_applied_score":0.75`, `"all_fields_matched":false`,
		`"field_path":"phone"`, `"type":"fd"`, `"gt_value":"555-1"`, `"pred_value":"555-9"`,
	} {
		if !strings.Contains(out, frag) {
			t.Fatalf("serialized node %s missing %s", out, frag)
		}
	}
	if strings.Contains(out, `"fields"`) || strings.Contains(out, `"aggregate"`) {
		t.Fatalf("empty optional blocks must be omitted: %s", out)
	}
}
