package table

type row struct {
	id     string
	fields map[string]interface{}
}

func (r row) RecordID() string { return r.id }

func (r row) Field(key string) interface{} { return r.fields[key] }

func newRow(id string, kv ...interface{}) row {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	return row{id: id, fields: fields}
}

var testSchema = Schema{
	SearchFields:  []string{"Name", "Email", "Phone"},
	StatusField:   "Status",
	CategoryField: "Country",
	DateField:     "EnquiryDate",
	SortFields:    []string{"Name", "Email", "Status", "Score", "EnquiryDate"},
}
