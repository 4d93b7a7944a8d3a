package domopipeline

import (
	stderrors "errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"metadata-ingestion/internal/common/utils"
	"metadata-ingestion/internal/models"
)

type missingFieldError struct {
	field string
}

func (e *missingFieldError) Error() string {
	return fmt.Sprintf("missing required field '%s'", e.field)
}

func isMissingField(err error) bool {
	var mf *missingFieldError
	return stderrors.As(err, &mf)
}

// pipelineRecord is a dataflow whose required fields have been checked
type pipelineRecord struct {
	ID          string
	Name        string
	Description string
	Created     *time.Time
}

// parsePipeline validates the vendor record once. id is required and must be
// a string or an integral number.
func parsePipeline(details models.PipelineDetails) (pipelineRecord, error) {
	rawID, ok := details["id"]
	if !ok || rawID == nil {
		return pipelineRecord{}, pkgerrors.WithStack(&missingFieldError{field: "id"})
	}

	id, ok := utils.StringValue(rawID)
	if !ok || id == "" {
		return pipelineRecord{}, pkgerrors.Errorf("invalid dataflow id %v (%T)", rawID, rawID)
	}

	record := pipelineRecord{ID: id}

	if v, ok := details["name"]; ok && v != nil {
		name, ok := v.(string)
		if !ok {
			return pipelineRecord{}, pkgerrors.Errorf("invalid dataflow name %v (%T)", v, v)
		}
		record.Name = name
	}

	if v, ok := details["description"]; ok && v != nil {
		description, ok := v.(string)
		if !ok {
			return pipelineRecord{}, pkgerrors.Errorf("invalid dataflow description %v (%T)", v, v)
		}
		record.Description = description
	}

	created, err := utils.ParseTimestamp(details["created"])
	if err != nil {
		return pipelineRecord{}, pkgerrors.Wrap(err, "invalid created date")
	}
	record.Created = created

	return record, nil
}

func nameOrUnknown(details models.PipelineDetails) string {
	raw, present := details["name"]
	if !present {
		return "unknown"
	}
	name, _ := utils.StringValue(raw)
	return name
}
