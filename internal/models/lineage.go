package models

// EntitiesEdge links an upstream entity to a downstream one
type EntitiesEdge struct {
	FromEntity  EntityReference `json:"fromEntity"`
	ToEntity    EntityReference `json:"toEntity"`
	Description string          `json:"description,omitempty"`
}

// AddLineageRequest adds one lineage edge
type AddLineageRequest struct {
	Edge EntitiesEdge `json:"edge"`
}
