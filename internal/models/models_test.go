package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseClassType(t *testing.T) {
	tests := []struct {
		input string
		want  ClassType
		ok    bool
	}{
		{"L", Lecture, true},
		{"t", Tutorial, true},
		{"Practical", Practical, true},
		{" lecture ", Lecture, true},
		{"X", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseClassType(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseClassType(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRankedSlots_Rank(t *testing.T) {
	slots := RankedSlots{4, 1, 7}

	if rank, ok := slots.Rank(4); !ok || rank != 0 {
		t.Errorf("expected rank 0 for slot 4, got %d, %v", rank, ok)
	}
	if rank, ok := slots.Rank(7); !ok || rank != 2 {
		t.Errorf("expected rank 2 for slot 7, got %d, %v", rank, ok)
	}
	if _, ok := slots.Rank(9); ok {
		t.Error("expected slot 9 to be unranked")
	}
}

func TestRankedSlots_Validate(t *testing.T) {
	tests := []struct {
		name    string
		slots   RankedSlots
		wantErr bool
	}{
		{"empty", RankedSlots{}, false},
		{"valid", RankedSlots{1, 2, 3}, false},
		{"duplicate", RankedSlots{1, 2, 1}, true},
		{"zero", RankedSlots{0}, true},
		{"negative", RankedSlots{3, -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.slots.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCourseSpec_RequiredTypes(t *testing.T) {
	course := CourseSpec{
		Code: "CSC1001",
		Slots: map[ClassType]RankedSlots{
			Practical: {2},
			Lecture:   {1, 3},
			Tutorial:  {},
		},
	}

	got := course.RequiredTypes()
	want := []ClassType{Lecture, Practical}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RequiredTypes() = %v, want %v", got, want)
	}

	if len((CourseSpec{Code: "MPU3113"}).RequiredTypes()) != 0 {
		t.Error("expected a course without slots to require nothing")
	}
}

func TestCourseSpec_JSONRoundTrip(t *testing.T) {
	course := CourseSpec{
		Code: "CSC1001",
		Name: "Programming Principles",
		Slots: map[ClassType]RankedSlots{
			Lecture:  {1, 2},
			Tutorial: {5},
		},
	}

	data, err := json.Marshal(course)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded CourseSpec
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(course, decoded) {
		t.Errorf("round trip mismatch: %+v != %+v", course, decoded)
	}

	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	slots, ok := raw["slots"].(map[string]any)
	if !ok || slots["L"] == nil {
		t.Errorf("expected slots keyed by class letter, got %s", data)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  csc1001 "); got != "CSC1001" {
		t.Errorf("NormalizeCode = %q", got)
	}
}

func TestOutcomeKind_Classes(t *testing.T) {
	tests := []struct {
		kind      OutcomeKind
		terminal  bool
		retryable bool
		state     CourseState
	}{
		{OutcomeSuccess, true, false, StateSatisfied},
		{OutcomeScheduleClash, true, false, StateSatisfied},
		{OutcomeCreditHourCapExceeded, true, false, StateSatisfied},
		{OutcomeInvalidCombination, false, true, StateRetryable},
		{OutcomeTransientFailure, false, true, StateRetryable},
		{OutcomeAmbiguousServerReply, false, true, StateRetryable},
		{OutcomeNoAvailableSlots, false, false, StateAbandoned},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.kind.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", tt.kind.Terminal(), tt.terminal)
			}
			if tt.kind.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", tt.kind.Retryable(), tt.retryable)
			}
			if StateFor(tt.kind) != tt.state {
				t.Errorf("StateFor() = %v, want %v", StateFor(tt.kind), tt.state)
			}
		})
	}
}

func TestRunSummary_Counts(t *testing.T) {
	summary := &RunSummary{Results: []CourseResult{
		{Code: "A", State: StateSatisfied},
		{Code: "B", State: StateAbandoned},
		{Code: "C", State: StateSatisfied},
	}}

	if summary.Count(StateSatisfied) != 2 {
		t.Errorf("expected 2 satisfied, got %d", summary.Count(StateSatisfied))
	}
	if summary.AllSatisfied() {
		t.Error("expected AllSatisfied to be false")
	}
	if r, ok := summary.Result("B"); !ok || r.State != StateAbandoned {
		t.Errorf("unexpected result for B: %+v, %v", r, ok)
	}
	if _, ok := summary.Result("Z"); ok {
		t.Error("expected no result for unknown code")
	}
}
