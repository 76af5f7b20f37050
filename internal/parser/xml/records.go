package xmlparser

// Record is one parsed record element. Attribute and scalar field values are
// strings; list fields are []string. Absent values have no key.
type Record map[string]any
