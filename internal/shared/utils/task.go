package utils

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

// UnmarshalTask decodes the task payload into dest. An empty payload leaves
// dest at its zero value.
func UnmarshalTask(t *asynq.Task, dest interface{}) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return nil
}

// NewTask encodes payload and builds an asynq task of the given type.
func NewTask(taskType string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, data, opts...), nil
}
