package ml

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value float64
}

// Record is a single row of named features in insertion order.
type Record struct {
	fields []Field
}

func NewRecord(fields ...Field) *Record {
	r := &Record{}
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Set overwrites an existing field or appends a new one.
func (r *Record) Set(name string, value float64) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

func (r *Record) Get(name string) (float64, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (r *Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

func (r *Record) Len() int {
	return len(r.fields)
}

// Expand lays the record out in columns order. Columns the record does not
// carry are zero; fields outside columns are returned as dropped.
func (r *Record) Expand(columns []string) (values []float64, dropped []string) {
	values = make([]float64, len(columns))
	used := make(map[string]bool, len(columns))
	for i, col := range columns {
		if v, ok := r.Get(col); ok {
			values[i] = v
			used[col] = true
		}
	}
	for _, f := range r.fields {
		if !used[f.Name] {
			dropped = append(dropped, f.Name)
		}
	}
	return values, dropped
}
