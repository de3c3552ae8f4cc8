package schema

// LiveTable represents the introspected state of one table
type LiveTable struct {
	Name    string
	Exists  bool
	Columns []LiveColumn
	Indexes []LiveIndex
}

// LiveColumn represents a column as reported by the store
type LiveColumn struct {
	Name       string
	Type       string // as reported, not normalized
	NotNull    bool
	PrimaryKey bool
}

// LiveIndex represents an index attached to a live table
type LiveIndex struct {
	Name string
}

// ColumnByName returns the live column with the given name, or nil
func (t *LiveTable) ColumnByName(name string) *LiveColumn {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
