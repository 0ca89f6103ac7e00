package models

// SlotHandle is an adapter-specific reference used to toggle and submit a slot.
// The bidding core never looks inside it.
type SlotHandle string

// SlotRow is one row of a course's live availability listing
type SlotRow struct {
	ClassType  ClassType  `json:"class_type"`
	SlotNumber int        `json:"slot_number"`
	Selectable bool       `json:"selectable"`
	Handle     SlotHandle `json:"handle"`
}
