package models

// ChangeKind tells whether a table write created a row or replaced one.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeModify ChangeKind = "MODIFY"
)

// ChangeEvent is emitted for every write to the watch table. Old is nil on
// the first write to a key; otherwise it carries the row image the write
// replaced.
type ChangeEvent struct {
	ID   string
	Kind ChangeKind
	Old  *Record
	New  Record
}
