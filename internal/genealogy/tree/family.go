package tree

import (
	"log/slog"

	"famtree/internal/genealogy/graph"
	"famtree/internal/genealogy/models"
	"famtree/pkg/domain"
)

// MaxDepth bounds every traversal of the parent graph.
const MaxDepth = 64

// BuildFamilyLinks derives the children adjacency of t from the declared
// father/mother links and assigns generation = parent.generation + 1. The
// father wins when both parents are members. Parents absent from the tree are
// logged and ignored; roots keep their current generation.
//
// Ancestor chains are walked iteratively with a visited set: a cycle or a
// chain deeper than MaxDepth is cut at the offending node, which is then
// treated as a root.
func BuildFamilyLinks(t *models.Tree, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t.ResetChildren()
	nodes := t.Nodes()
	for _, n := range nodes {
		for _, parent := range []*models.Person{graph.Father(n), graph.Mother(n)} {
			if parent == nil {
				continue
			}
			member, ok := t.Get(parent.Identity())
			if !ok {
				logger.Info("declared parent absent from tree",
					"person", n.Identity().String(),
					"parent", parent.Identity().String(),
					"tree_id", t.ID.String())
				continue
			}
			t.AddChild(member, n)
		}
	}

	resolved := make(map[models.IdentityKey]bool, len(nodes))
	for _, n := range nodes {
		assignGeneration(t, n, resolved, logger)
	}
}

func preferredParent(t *models.Tree, p *models.Person) *models.Person {
	if f := graph.Father(p); f != nil {
		if member, ok := t.Get(f.Identity()); ok {
			return member
		}
	}
	if m := graph.Mother(p); m != nil {
		if member, ok := t.Get(m.Identity()); ok {
			return member
		}
	}
	return nil
}

func assignGeneration(t *models.Tree, start *models.Person, resolved map[models.IdentityKey]bool, logger *slog.Logger) {
	var chain []*models.Person
	onChain := make(map[models.IdentityKey]bool)
	cur := start
	for {
		k := cur.Identity()
		if resolved[k] {
			break
		}
		if onChain[k] {
			logger.Warn("parent cycle detected", "person", k.String(), "tree_id", t.ID.String())
			resolved[k] = true
			break
		}
		if len(chain) >= MaxDepth {
			logger.Warn("ancestor chain exceeds depth bound", "person", k.String(), "max_depth", MaxDepth)
			resolved[k] = true
			break
		}
		chain = append(chain, cur)
		onChain[k] = true
		parent := preferredParent(t, cur)
		if parent == nil {
			resolved[k] = true
			break
		}
		cur = parent
	}

	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		k := p.Identity()
		if resolved[k] {
			continue
		}
		p.Generation = preferredParent(t, p).Generation + 1
		resolved[k] = true
	}
}

// Reachable builds owner's tree as the closure of the link graph around the
// owner, following links in both directions up to maxDepth hops. universe
// supplies the persons whose links may point at tree members.
func Reachable(id domain.TreeID, owner *models.Person, universe []*models.Person, maxDepth int) *models.Tree {
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	incoming := make(map[models.IdentityKey][]*models.Person)
	for _, p := range universe {
		for _, l := range p.Links() {
			k := l.Target.Identity()
			incoming[k] = append(incoming[k], p)
		}
	}

	t := models.NewTree(id, owner)
	frontier := []*models.Person{owner}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []*models.Person
		visit := func(q *models.Person) {
			if t.Add(q) {
				next = append(next, q)
			}
		}
		for _, p := range frontier {
			for _, l := range p.Links() {
				visit(l.Target)
			}
			for _, q := range incoming[p.Identity()] {
				visit(q)
			}
		}
		frontier = next
	}
	return t
}
