package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestUserID_MarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   UserID
		want string
	}{
		{id: "42", want: `42`},
		{id: "9223372036854775807", want: `9223372036854775807`},
		{id: "dev_1700000000000_abc", want: `"dev_1700000000000_abc"`},
		{id: "12345678901234567890", want: `"12345678901234567890"`},
		{id: "-1", want: `"-1"`},
		{id: "007", want: `"007"`},
		{id: "00", want: `"00"`},
		{id: "0", want: `0`},
		{id: "9999999999999999999", want: `"9999999999999999999"`},
		{id: "+5", want: `"+5"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.id)
		if err != nil {
			t.Fatalf("marshal %q: %v", tt.id, err)
		}
		if string(b) != tt.want {
			t.Fatalf("marshal %q: got %s want %s", tt.id, b, tt.want)
		}
	}
}

func TestUserID_LeadingZerosInBodies(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(SubmitTaskBody{UID: "007", Name: "Call", EstimatedHours: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back SubmitTaskBody
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	if back.UID != "007" {
		t.Fatalf("uid changed: %q (%s)", back.UID, b)
	}
}

func TestUserID_UnmarshalJSON_NumberOrString(t *testing.T) {
	t.Parallel()

	var a, b UserID
	if err := json.Unmarshal([]byte(`42`), &a); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if err := json.Unmarshal([]byte(`"42"`), &b); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if a != "42" || b != "42" {
		t.Fatalf("expected both to decode to 42; got %q %q", a, b)
	}
}

func TestTask_UnmarshalJSON_HourAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Task
	}{
		{
			name: "canonical",
			in:   `{"id":"t1","name":"Write report","complexityHours":3}`,
			want: Task{ID: "t1", Name: "Write report", ComplexityHours: 3},
		},
		{
			name: "estimatedHours from server",
			in:   `{"id":17,"name":"Plan","deadline":"01.02.2026","estimatedHours":2}`,
			want: Task{ID: "17", Name: "Plan", Deadline: "01.02.2026", ComplexityHours: 2},
		},
		{
			name: "complexity alias",
			in:   `{"name":"A","complexity":5}`,
			want: Task{Name: "A", ComplexityHours: 5},
		},
		{
			name: "complexityHours wins over aliases",
			in:   `{"name":"A","complexityHours":1,"hours":9}`,
			want: Task{Name: "A", ComplexityHours: 1},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got Task
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v want %#v", got, tt.want)
			}
		})
	}
}

func TestPersistedState_LegacyEmptyStrings(t *testing.T) {
	t.Parallel()

	in := `{"tasks":[],"orderedTasks":[],"freeHours":"","savedFreeHours":5,"resultNumber":"","resultPercent":""}`
	var st PersistedState
	if err := json.Unmarshal([]byte(in), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.FreeHours.Valid {
		t.Fatalf("expected freeHours unset; got %#v", st.FreeHours)
	}
	if !st.SavedFreeHours.Valid || st.SavedFreeHours.Value != 5 {
		t.Fatalf("expected savedFreeHours=5; got %#v", st.SavedFreeHours)
	}

	b, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"savedFreeHours":5}` {
		t.Fatalf("unexpected encoding: %s", b)
	}
}

func TestSubmitTaskResponse_NumericTaskID(t *testing.T) {
	t.Parallel()

	var r SubmitTaskResponse
	if err := json.Unmarshal([]byte(`{"ok":true,"taskId":991}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.OK || r.TaskID != "991" {
		t.Fatalf("got %#v", r)
	}
}
