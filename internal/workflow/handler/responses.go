package handler

import (
	"caseflow/internal/domain"
	"caseflow/internal/workflow"
	id "caseflow/pkg/domain"
)

type AllowedTransitionsResponse struct {
	CaseID             id.CaseID           `json:"case_id"`
	AllowedTransitions []domain.CaseStatus `json:"allowed_transitions"`
}

type HistoryResponse struct {
	CaseID      id.CaseID                 `json:"case_id"`
	Transitions []domain.TransitionRecord `json:"transitions"`
}

type BatchResponse struct {
	Results []workflow.BatchItemResult `json:"results"`
}
