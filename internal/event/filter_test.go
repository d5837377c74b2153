package event

import (
	"errors"
	"testing"
)

func TestFilters(t *testing.T) {
	failed := Payload{KeyError: errors.New("x"), KeyDuration: int64(4)}
	slow := Payload{KeyDuration: int64(250), "table": "users", "rows": 10}
	fast := Payload{KeyDuration: int64(2), "table": "orders"}
	odd := Payload{"list": []int{1}}

	tests := []struct {
		name   string
		filter FilterFunc
		p      Payload
		want   bool
	}{
		{"failed on failure", FilterFailed(), failed, true},
		{"failed on success", FilterFailed(), slow, false},
		{"succeeded on success", FilterSucceeded(), slow, true},
		{"succeeded on failure", FilterSucceeded(), failed, false},
		{"min duration above", FilterMinDuration(100), slow, true},
		{"min duration equal", FilterMinDuration(250), slow, true},
		{"min duration below", FilterMinDuration(100), fast, false},
		{"min duration missing", FilterMinDuration(0), odd, false},
		{"has key", FilterHasKey("table"), fast, true},
		{"missing key", FilterHasKey("rows"), fast, false},
		{"key equals", FilterKeyEquals("table", "users"), slow, true},
		{"key differs", FilterKeyEquals("table", "users"), fast, false},
		{"key equals uncomparable", FilterKeyEquals("list", []int{1}), odd, false},
		{"typed payload", FilterPayload("rows", func(n int) bool { return n > 5 }), slow, true},
		{"typed payload wrong type", FilterPayload("table", func(n int) bool { return true }), slow, false},
		{"and", FilterAnd(FilterSucceeded(), FilterMinDuration(100)), slow, true},
		{"and fails", FilterAnd(FilterSucceeded(), FilterMinDuration(100)), fast, false},
		{"or", FilterOr(FilterFailed(), FilterMinDuration(100)), failed, true},
		{"or fails", FilterOr(FilterFailed(), FilterMinDuration(100)), fast, false},
		{"not", FilterNot(FilterFailed()), fast, true},
		{"all", FilterAll(), odd, true},
		{"none", FilterNone(), odd, false},
		{"empty and", FilterAnd(), odd, true},
		{"empty or", FilterOr(), odd, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter(tt.p); got != tt.want {
				t.Errorf("filter() = %v, want %v", got, tt.want)
			}
		})
	}
}
