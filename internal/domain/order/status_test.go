package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusProcessing, StatusAccepted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusShipped, false},
		{StatusProcessing, StatusDelivered, false},
		{StatusAccepted, StatusShipped, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusProcessing, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusDelivered, StatusDelivered, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusProcessing.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("Returned").Valid())
}

func TestFormatOrderNumber(t *testing.T) {
	assert.Equal(t, "OD1000000001", FormatOrderNumber(1000000001))
	assert.Equal(t, "OD0000000042", FormatOrderNumber(42))
	assert.Len(t, FormatOrderNumber(1), len("OD")+10)
}
