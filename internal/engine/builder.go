package engine

import (
	"sort"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// placeholderTitle names synthesized roots for children whose group id
// resolves to nothing, so no child is silently dropped.
const placeholderTitle = "Unnamed Workflow"

// Forest is the built workflow tree: active roots in display order, plus an
// index over every resolvable workflow for the plan merger.
type Forest struct {
	Roots []RootWorkflow

	entries map[string]*treeEntry
	nodes   map[string]store.WorkflowNode
}

type treeEntry struct {
	node      store.WorkflowNode
	questions []store.WorkflowNode
	synthetic bool
}

// BuildForest turns a tenant's flat, group-keyed node list into a forest of
// root conversations. Single arena pass over the precomputed node set;
// cyclic or dangling group ids cannot loop.
func BuildForest(nodes []store.WorkflowNode, kinds []store.QuestionKind) *Forest {
	f := &Forest{
		entries: make(map[string]*treeEntry),
		nodes:   make(map[string]store.WorkflowNode, len(nodes)),
	}
	defaultKind := defaultQuestionKind(kinds)

	var children []store.WorkflowNode
	var rootOrder []string
	for _, n := range nodes {
		f.nodes[n.ID] = n
		if n.IsRoot || n.GroupID == nil {
			if _, exists := f.entries[n.ID]; !exists {
				f.entries[n.ID] = &treeEntry{node: n}
				rootOrder = append(rootOrder, n.ID)
			}
			continue
		}
		children = append(children, n)
	}

	for _, child := range children {
		gid := *child.GroupID
		entry, ok := f.entries[gid]
		if !ok {
			// The group anchor exists but was never classified as a root:
			// materialize it lazily rather than dropping its children.
			if anchor, exists := f.nodes[gid]; exists {
				entry = &treeEntry{node: anchor}
			} else {
				entry = &treeEntry{
					node: store.WorkflowNode{
						ID:           gid,
						TenantID:     child.TenantID,
						Title:        placeholderTitle,
						QuestionKind: defaultKind,
						IsRoot:       true,
						Active:       true,
					},
					synthetic: true,
				}
			}
			f.entries[gid] = entry
			rootOrder = append(rootOrder, gid)
		}
		entry.questions = append(entry.questions, child)
	}

	for _, id := range rootOrder {
		entry := f.entries[id]
		if !entry.node.Active {
			// Inactive roots are pruned with their children, after
			// attribution, so the children are accounted for.
			continue
		}
		f.Roots = append(f.Roots, entry.toRootWorkflow())
	}
	sort.SliceStable(f.Roots, func(i, j int) bool {
		return f.Roots[i].Order < f.Roots[j].Order
	})

	return f
}

// Lookup resolves a workflow id to a root-workflow rendering. Roots (built,
// lazily materialized, or synthesized) come back with their questions; a
// bare child node comes back as a standalone workflow. Inactive workflows do
// not resolve.
func (f *Forest) Lookup(id string) (RootWorkflow, bool) {
	if entry, ok := f.entries[id]; ok {
		if !entry.node.Active {
			return RootWorkflow{}, false
		}
		return entry.toRootWorkflow(), true
	}
	if n, ok := f.nodes[id]; ok && n.Active {
		return RootWorkflow{
			ID:           n.ID,
			Title:        n.Title,
			Prompt:       n.Prompt,
			QuestionKind: n.QuestionKind,
			Order:        n.SortOrder,
			Questions:    []ChildWorkflow{},
		}, true
	}
	return RootWorkflow{}, false
}

// Summary returns the short rendering used inside service-plan attachments.
func (f *Forest) Summary(id string) (WorkflowSummary, bool) {
	rw, ok := f.Lookup(id)
	if !ok {
		return WorkflowSummary{}, false
	}
	return WorkflowSummary{ID: rw.ID, Title: rw.Title, QuestionKind: rw.QuestionKind}, true
}

func (e *treeEntry) toRootWorkflow() RootWorkflow {
	questions := make([]ChildWorkflow, 0, len(e.questions))
	active := make([]store.WorkflowNode, 0, len(e.questions))
	for _, q := range e.questions {
		if q.Active {
			active = append(active, q)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	for _, q := range active {
		questions = append(questions, ChildWorkflow{
			ID:           q.ID,
			Title:        q.Title,
			Prompt:       q.Prompt,
			QuestionKind: q.QuestionKind,
			Order:        q.SortOrder,
		})
	}
	return RootWorkflow{
		ID:           e.node.ID,
		Title:        e.node.Title,
		Prompt:       e.node.Prompt,
		QuestionKind: e.node.QuestionKind,
		Order:        e.node.SortOrder,
		Questions:    questions,
	}
}

// defaultQuestionKind is the tenant's lowest-id active kind, used by
// synthesized placeholder roots. Zero means unspecified.
func defaultQuestionKind(kinds []store.QuestionKind) int {
	best := 0
	found := false
	for _, k := range kinds {
		if !k.Active {
			continue
		}
		if !found || k.ID < best {
			best = k.ID
			found = true
		}
	}
	return best
}
