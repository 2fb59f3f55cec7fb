package kb

import (
	"encoding/json"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
const serviceName = "dialoguestate.KnowledgeBase"

const (
	methodQuery     = "/" + serviceName + "/Query"
	methodAggregate = "/" + serviceName + "/AggregateQuery"
	methodFill      = "/" + serviceName + "/FillInformSlot"
)

// #endregion methods

// #region messages
// Request and response bodies travel as google.protobuf.Struct; these types
// give them a shape on both ends.
type queryRequest struct {
	Constraints dialogue.Constraints `json:"constraints"`
}

type queryResponse struct {
	Results dialogue.Results `json:"results"`
}

type aggregateRequest struct {
	Constraints dialogue.Constraints `json:"constraints"`
	UserAction  dialogue.Action      `json:"user_action"`
}

type aggregateResponse struct {
	Counts dialogue.Aggregate `json:"counts"`
}

type fillRequest struct {
	Proposed    map[string]any       `json:"proposed"`
	Constraints dialogue.Constraints `json:"constraints"`
	UserAction  dialogue.Action      `json:"user_action"`
}

type fillResponse struct {
	Inform       map[string]any         `json:"inform"`
	MatchObjects []dialogue.MatchObject `json:"match_objects"`
}

// #endregion messages

// #region codec
// toStruct normalizes v through JSON so every nested value is one structpb
// accepts.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, out any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}

// #endregion codec
