package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateSubmitting, true},
		{StateIdle, StateSucceeded, false},
		{StateSubmitting, StateSubmitting, false},
		{StateSubmitting, StateSucceeded, true},
		{StateSubmitting, StateFailed, true},
		{StateSubmitting, StateIdle, false},
		{StateFailed, StateSubmitting, true},
		{StateSucceeded, StateSubmitting, true},
		{StateSucceeded, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}
