package handler

import (
	"caseflow/internal/domain"
	"caseflow/internal/priority"
	"caseflow/internal/workflow"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// CreateCaseRequest opens a new case. Priority may be given directly or
// derived from scoring inputs; when both are present the explicit priority
// wins.
type CreateCaseRequest struct {
	CaseNumber string            `json:"case_number"`
	UnitID     string            `json:"unit_id"`
	RegionID   string            `json:"region_id"`
	Priority   string            `json:"priority,omitempty"`
	Scoring    *priority.Request `json:"scoring,omitempty"`
}

func (r CreateCaseRequest) ToParams() (workflow.CreateCaseParams, error) {
	var params workflow.CreateCaseParams

	unitID, err := id.ParseUnitID(r.UnitID)
	if err != nil {
		return params, dErrors.New(dErrors.CodeValidation, "unit_id is not a valid identifier")
	}
	regionID, err := id.ParseRegionID(r.RegionID)
	if err != nil {
		return params, dErrors.New(dErrors.CodeValidation, "region_id is not a valid identifier")
	}

	var p domain.Priority
	switch {
	case r.Priority != "":
		p, err = domain.ParsePriority(r.Priority)
		if err != nil {
			return params, err
		}
	case r.Scoring != nil:
		result, err := priority.Score(*r.Scoring)
		if err != nil {
			return params, err
		}
		p = result.Priority
	default:
		return params, dErrors.New(dErrors.CodeValidation, "either priority or scoring inputs are required")
	}

	return workflow.CreateCaseParams{
		CaseNumber: r.CaseNumber,
		UnitID:     unitID,
		RegionID:   regionID,
		Priority:   p,
	}, nil
}

// TransitionRequest moves a case to a new status.
type TransitionRequest struct {
	ToStatus string `json:"to_status"`
	Notes    string `json:"notes,omitempty"`
}

// BatchRequest transitions many cases in one call.
type BatchRequest struct {
	Transitions []BatchTransitionItem `json:"transitions"`
}

type BatchTransitionItem struct {
	CaseID   string `json:"case_id"`
	ToStatus string `json:"to_status"`
	Notes    string `json:"notes,omitempty"`
}

func (r BatchRequest) ToBatch() ([]workflow.BatchRequest, error) {
	if len(r.Transitions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "transitions must not be empty")
	}
	out := make([]workflow.BatchRequest, 0, len(r.Transitions))
	for _, item := range r.Transitions {
		caseID, err := id.ParseCaseID(item.CaseID)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "case_id %q is not a valid identifier", item.CaseID)
		}
		to, err := domain.ParseCaseStatus(item.ToStatus)
		if err != nil {
			return nil, err
		}
		out = append(out, workflow.BatchRequest{CaseID: caseID, To: to, Notes: item.Notes})
	}
	return out, nil
}
