package reporting

// ParentIndexConnection links an index to its parent index. A nil
// Percentage means the children are weighted equally.
type ParentIndexConnection struct {
	ParentIndexID int      `json:"parent_index_id"`
	Percentage    *float64 `json:"percentage"`
}

// ChildIndexConnection links a combination index to one of its child
// indices.
type ChildIndexConnection struct {
	ChildIndexID int      `json:"child_index_id"`
	Percentage   *float64 `json:"percentage"`
}

// IndexConnection links a measurement to an index.
type IndexConnection struct {
	IndexID    int      `json:"index_id"`
	Percentage *float64 `json:"percentage"`
}

// MeasurementConnection links a combination index to a measurement.
type MeasurementConnection struct {
	MeasurementID int      `json:"measurement_id"`
	Percentage    *float64 `json:"percentage"`
}

// Index is a node of the metric hierarchy.
type Index struct {
	ID                     int                     `json:"id"`
	Code                   string                  `json:"index_code"`
	Name                   string                  `json:"name"`
	NameLocal              string                  `json:"name_local,omitempty"`
	Description            string                  `json:"description,omitempty"`
	DescriptionLocal       string                  `json:"description_local,omitempty"`
	VisibilityID           int                     `json:"visibility_id,omitempty"`
	ParentIndexConnections []ParentIndexConnection `json:"parent_index_connections,omitempty"`
}

// HasParent reports whether the index is linked to parentID.
func (i Index) HasParent(parentID int) bool {
	for _, c := range i.ParentIndexConnections {
		if c.ParentIndexID == parentID {
			return true
		}
	}
	return false
}

// IndexRequest is the body of POST indices/.
type IndexRequest struct {
	Code                   string                  `json:"index_code"`
	Name                   string                  `json:"name"`
	NameLocal              string                  `json:"name_local"`
	Description            string                  `json:"description"`
	DescriptionLocal       string                  `json:"description_local"`
	VisibilityID           int                     `json:"visibility_id"`
	ParentIndexConnections []ParentIndexConnection `json:"parent_index_connections,omitempty"`
	ChildIndexConnections  []ChildIndexConnection  `json:"child_index_connections,omitempty"`
	MeasurementConnections []MeasurementConnection `json:"measurement_connections,omitempty"`
}

// MeasurementValue is one dated point of a measurement's time series.
type MeasurementValue struct {
	ID            int     `json:"id,omitempty"`
	MeasurementID int     `json:"measurement_id,omitempty"`
	Date          string  `json:"date"`
	Value         float64 `json:"value"`
	Comment       string  `json:"comment"`
}

// Measurement is a leaf metric with a bounded value range.
type Measurement struct {
	ID               int               `json:"id"`
	Code             string            `json:"measurement_code"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	MinValue         float64           `json:"min_value"`
	MaxValue         float64           `json:"max_value"`
	DepartmentID     *int              `json:"department_id,omitempty"`
	IndexConnections []IndexConnection `json:"index_connections,omitempty"`
}

// LinkedTo reports whether the measurement is connected to indexID.
func (m Measurement) LinkedTo(indexID int) bool {
	for _, c := range m.IndexConnections {
		if c.IndexID == indexID {
			return true
		}
	}
	return false
}

// MeasurementRequest is the body of POST measurements/.
type MeasurementRequest struct {
	Code              string             `json:"measurement_code"`
	Name              string             `json:"name"`
	NameLocal         string             `json:"name_local"`
	Description       string             `json:"description"`
	DescriptionLocal  string             `json:"description_local"`
	MinValue          float64            `json:"min_value"`
	MaxValue          float64            `json:"max_value"`
	MinBetterValue    bool               `json:"min_better_value"`
	VisibilityID      int                `json:"visibility_id"`
	DepartmentID      *int               `json:"department_id,omitempty"`
	IndexConnections  []IndexConnection  `json:"index_connections"`
	MeasurementValues []MeasurementValue `json:"measurement_values,omitempty"`
}

// IndexMeasurementConnection is the body of POST
// index-measurement-connections/.
type IndexMeasurementConnection struct {
	ID            int      `json:"id,omitempty"`
	IndexID       int      `json:"index_id"`
	MeasurementID int      `json:"measurement_id"`
	Percentage    *float64 `json:"percentage"`
}

// IndexIndexConnection is the body of POST index-index-connections/.
type IndexIndexConnection struct {
	ID            int      `json:"id,omitempty"`
	ParentIndexID int      `json:"parent_index_id"`
	ChildIndexID  int      `json:"child_index_id"`
	Percentage    *float64 `json:"percentage"`
}

// Department is a department known to the Reporting platform.
type Department struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Account is a user account on the Reporting platform.
type Account struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsActive  bool   `json:"is_active"`
}
