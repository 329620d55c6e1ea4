package utils

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Days int `json:"days"`
}

func TestNewTaskAndUnmarshal(t *testing.T) {
	task, err := NewTask("reservation:expire", payload{Days: 3}, asynq.Queue("low"))
	require.NoError(t, err)
	assert.Equal(t, "reservation:expire", task.Type())

	var got payload
	require.NoError(t, UnmarshalTask(task, &got))
	assert.Equal(t, 3, got.Days)
}

func TestUnmarshalTask_EmptyPayloadKeepsZeroValue(t *testing.T) {
	got := payload{Days: 9}
	require.NoError(t, UnmarshalTask(asynq.NewTask("x", nil), &got))
	assert.Equal(t, 9, got.Days)
}

func TestUnmarshalTask_Malformed(t *testing.T) {
	var got payload
	err := UnmarshalTask(asynq.NewTask("x", []byte(`{"days":"many"}`)), &got)
	assert.ErrorContains(t, err, "decode x payload")
}
