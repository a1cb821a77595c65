package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"habitsync/internal/model"
)

var ErrUnknownType = errors.New("unknown event type")

// Envelope is the wire form of an event: {"type": ..., "data": ...}.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope serializes e. Habit events carry the full habit as data.
func NewEnvelope(e Event) (Envelope, error) {
	var payload any = e
	switch ev := e.(type) {
	case HabitCreated:
		payload = ev.Habit
	case HabitUpdated:
		payload = ev.Habit
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", e.Type(), err)
	}
	return Envelope{Type: e.Type(), Data: data}, nil
}

func Encode(e Event) ([]byte, error) {
	env, err := NewEnvelope(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Event()
}

// Event decodes the payload into its concrete kind.
func (env Envelope) Event() (Event, error) {
	switch env.Type {
	case TypeHabitCreated:
		var h model.Habit
		if err := json.Unmarshal(env.Data, &h); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return HabitCreated{Habit: h}, nil
	case TypeHabitUpdated:
		var h model.Habit
		if err := json.Unmarshal(env.Data, &h); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return HabitUpdated{Habit: h}, nil
	case TypeHabitDeleted:
		var e HabitDeleted
		return decodeInto(env, &e)
	case TypeLogUpdated:
		var e LogUpdated
		return decodeInto(env, &e)
	case TypeDailyNoteUpdated:
		var e DailyNoteUpdated
		return decodeInto(env, &e)
	case TypeGlobalNoteUpdated:
		var e GlobalNoteUpdated
		return decodeInto(env, &e)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

func decodeInto[T Event](env Envelope, dst *T) (Event, error) {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return *dst, nil
}
