package mapping

// Assignment is one resolved source path written under a target field
type Assignment struct {
	From string
	To   string
}

// Build assembles an outgoing payload. Each target field receives the value
// resolved from its source body; absent values are written as nil, which encodes
// as JSON null. Assignments are applied in order so a later one wins on a
// repeated target.
func Build(assignments []Assignment, bodyFor func(i int) interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(assignments))
	for i, a := range assignments {
		value, ok := Extract(bodyFor(i), a.From)
		if !ok {
			value = nil
		}
		payload[a.To] = value
	}
	return payload
}
