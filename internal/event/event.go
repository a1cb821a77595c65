// Package event defines the Change Events emitted by the mutation gateway and
// applied by every session.
//
// Event is a closed set: each kind implements Dispatch by calling its own
// method on Handler, so adding a kind means adding a Handler method and every
// handler in the tree stops compiling until it deals with the new kind.
package event

import (
	"habitsync/internal/model"
)

type Type string

const (
	TypeHabitCreated      Type = "habit_created"
	TypeHabitUpdated      Type = "habit_updated"
	TypeHabitDeleted      Type = "habit_deleted"
	TypeLogUpdated        Type = "log_updated"
	TypeDailyNoteUpdated  Type = "daily_note_updated"
	TypeGlobalNoteUpdated Type = "global_note_updated"
)

// Types lists every kind in a stable order.
var Types = []Type{
	TypeHabitCreated,
	TypeHabitUpdated,
	TypeHabitDeleted,
	TypeLogUpdated,
	TypeDailyNoteUpdated,
	TypeGlobalNoteUpdated,
}

type Event interface {
	Type() Type
	Dispatch(h Handler)
	sealed()
}

// Handler receives one callback per event kind.
type Handler interface {
	HabitCreated(HabitCreated)
	HabitUpdated(HabitUpdated)
	HabitDeleted(HabitDeleted)
	LogUpdated(LogUpdated)
	DailyNoteUpdated(DailyNoteUpdated)
	GlobalNoteUpdated(GlobalNoteUpdated)
}

type HabitCreated struct {
	Habit model.Habit
}

type HabitUpdated struct {
	Habit model.Habit
}

type HabitDeleted struct {
	ID string `json:"id"`
}

type LogUpdated struct {
	DateKey   model.DateKey `json:"dateKey"`
	HabitID   string        `json:"habitId"`
	Completed bool          `json:"completed"`
}

type DailyNoteUpdated struct {
	DateKey model.DateKey `json:"dateKey"`
	Note    string        `json:"note"`
}

type GlobalNoteUpdated struct {
	Content string `json:"content"`
}

func (HabitCreated) Type() Type      { return TypeHabitCreated }
func (HabitUpdated) Type() Type      { return TypeHabitUpdated }
func (HabitDeleted) Type() Type      { return TypeHabitDeleted }
func (LogUpdated) Type() Type        { return TypeLogUpdated }
func (DailyNoteUpdated) Type() Type  { return TypeDailyNoteUpdated }
func (GlobalNoteUpdated) Type() Type { return TypeGlobalNoteUpdated }

func (e HabitCreated) Dispatch(h Handler)      { h.HabitCreated(e) }
func (e HabitUpdated) Dispatch(h Handler)      { h.HabitUpdated(e) }
func (e HabitDeleted) Dispatch(h Handler)      { h.HabitDeleted(e) }
func (e LogUpdated) Dispatch(h Handler)        { h.LogUpdated(e) }
func (e DailyNoteUpdated) Dispatch(h Handler)  { h.DailyNoteUpdated(e) }
func (e GlobalNoteUpdated) Dispatch(h Handler) { h.GlobalNoteUpdated(e) }

func (HabitCreated) sealed()      {}
func (HabitUpdated) sealed()      {}
func (HabitDeleted) sealed()      {}
func (LogUpdated) sealed()        {}
func (DailyNoteUpdated) sealed()  {}
func (GlobalNoteUpdated) sealed() {}
