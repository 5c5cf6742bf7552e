package engine

import (
	"sort"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// MergePlans folds service-plan workflow attachments into the root-workflow
// list. An attached workflow already in the list gets its treatment-plan
// stamp overwritten in place (last writer wins, plan list order); one not yet
// in the list is appended via lookup. The final order sorts by
// treatmentPlanOrder where set, falling back to the workflow's own order,
// with the workflow's own order breaking ties.
func MergePlans(roots []RootWorkflow, plans []store.ServicePlan, lookup func(string) (RootWorkflow, bool)) []RootWorkflow {
	merged := make([]RootWorkflow, len(roots))
	copy(merged, roots)

	position := make(map[string]int, len(merged))
	for i, rw := range merged {
		position[rw.ID] = i
	}

	for _, plan := range plans {
		if !plan.Active {
			continue
		}
		for _, att := range plan.AttachedWorkflows {
			order := att.Order
			if idx, ok := position[att.WorkflowID]; ok {
				merged[idx].TreatmentPlanOrder = &order
				merged[idx].TreatmentPlanSourceLabel = plan.Question
				continue
			}
			rw, ok := lookup(att.WorkflowID)
			if !ok {
				continue
			}
			rw.TreatmentPlanOrder = &order
			rw.TreatmentPlanSourceLabel = plan.Question
			position[rw.ID] = len(merged)
			merged = append(merged, rw)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		pi, pj := mergeSortKey(merged[i]), mergeSortKey(merged[j])
		if pi != pj {
			return pi < pj
		}
		return merged[i].Order < merged[j].Order
	})
	return merged
}

func mergeSortKey(rw RootWorkflow) int {
	if rw.TreatmentPlanOrder != nil {
		return *rw.TreatmentPlanOrder
	}
	return rw.Order
}
