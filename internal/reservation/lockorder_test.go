package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLockOrder(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want []int64
	}{
		{"empty", nil, []int64{}},
		{"single", []int64{4}, []int64{4}},
		{"sorted", []int64{1, 2, 3}, []int64{1, 2, 3}},
		{"reverse", []int64{3, 2, 1}, []int64{1, 2, 3}},
		{"duplicates", []int64{2, 1, 2, 1, 9}, []int64{1, 2, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLockOrder(tt.in))
		})
	}
}

func TestResolveLockOrderIsPermutationInvariant(t *testing.T) {
	a := ResolveLockOrder([]int64{1, 2})
	b := ResolveLockOrder([]int64{2, 1})
	assert.Equal(t, a, b)
}

func TestResolveLockOrderDoesNotMutateInput(t *testing.T) {
	in := []int64{3, 1, 2}
	_ = ResolveLockOrder(in)
	assert.Equal(t, []int64{3, 1, 2}, in)
}
