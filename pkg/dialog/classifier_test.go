package dialog

import "testing"

func TestClassifyTaskStatus(t *testing.T) {
	k := NewKeywordClassifier(KeywordConfig{})
	cases := []struct {
		name string
		text string
		want Classification
	}{
		{"done only", "હા, કામ થઈ ગયું", Classification{TaskDone, 90}},
		{"pending only", "હજુ બાકી છે", Classification{TaskPending, 90}},
		{"english done", "yes it is done", Classification{TaskDone, 90}},
		{"conflict", "થઈ ગયું પણ થોડું બાકી", Classification{TaskUnclear, 40}},
		{"empty", "", Classification{TaskUnclear, 30}},
		{"no match", "હેલો", Classification{TaskUnclear, 30}},
	}
	for _, tc := range cases {
		got := k.ClassifyTaskStatus(tc.text)
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestClassifyBusyNeedsTwoSignals(t *testing.T) {
	k := NewKeywordClassifier(KeywordConfig{})
	if k.ClassifyBusy("i am busy") {
		t.Fatalf("single busy signal must not count")
	}
	if !k.ClassifyBusy("busy right now, call later") {
		t.Fatalf("expected busy with two signals")
	}
	if !k.ClassifyBusy("હમણાં સમય નથી") {
		t.Fatalf("expected busy for gujarati deferral")
	}
	if k.ClassifyBusy("") {
		t.Fatalf("empty text is never busy")
	}
}

func TestClassifyBusyCountsDistinctPhrases(t *testing.T) {
	k := NewKeywordClassifier(KeywordConfig{BusyPhrases: []string{"busy", "busy", "later"}})
	if k.ClassifyBusy("busy busy busy") {
		t.Fatalf("repeated phrase must count once")
	}
}
