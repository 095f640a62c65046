package ai

// ExtractedEntity is a legal entity identified in a chunk of text.
type ExtractedEntity struct {
	// Name is the entity identifier in lowercase with collapsed whitespace.
	// Example: "supreme court", "case 42/2019", "data protection act"
	Name string

	// Type categorizes the entity. Must be one of core.EntityTypes.
	Type string
}

// ExtractedRelation is a directed, typed relationship between two entities
// found in the same chunk.
type ExtractedRelation struct {
	// Source is the normalized name of the entity the relation starts from.
	Source string

	// SourceType is the type of the source entity.
	SourceType string

	// Target is the normalized name of the entity the relation points to.
	Target string

	// TargetType is the type of the target entity.
	TargetType string

	// Type is the relationship kind. Must be one of core.EdgeTypes.
	Type string
}

// Extraction is the full result of entity extraction over one chunk.
type Extraction struct {
	Entities  []ExtractedEntity
	Relations []ExtractedRelation
}
