package service

import (
	"fmt"

	"spatial-canvas-core/internal/entity"

	"github.com/google/uuid"
)

// arena is the flat element store: one map of live nodes plus parent and
// children indexes. The persisted recursive tree exists only at the
// repository boundary; everything in memory works on this adjacency form,
// so level lookups and ancestry walks never recurse through the document.
type arena struct {
	elements map[uuid.UUID]*entity.Element
	parents  map[uuid.UUID]uuid.UUID   // child id -> container id, uuid.Nil = root
	children map[uuid.UUID][]uuid.UUID // container id -> ordered child ids
}

func newArena() *arena {
	return &arena{
		elements: make(map[uuid.UUID]*entity.Element),
		parents:  make(map[uuid.UUID]uuid.UUID),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (a *arena) Element(id uuid.UUID) (*entity.Element, bool) {
	el, ok := a.elements[id]
	return el, ok
}

func (a *arena) Parent(id uuid.UUID) (uuid.UUID, bool) {
	parent, ok := a.parents[id]
	return parent, ok
}

// ChildIds returns a copy of the ordered child list of a container level.
func (a *arena) ChildIds(containerId uuid.UUID) []uuid.UUID {
	ids := a.children[containerId]
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

func (a *arena) Len() int {
	return len(a.elements)
}

// containerExists reports whether id can hold children: the root sentinel or
// a live container element.
func (a *arena) containerExists(id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	el, ok := a.elements[id]
	if !ok {
		return fmt.Errorf("%w: container %s", entity.ErrElementNotFound, id)
	}
	if !el.Type.IsContainer() {
		return fmt.Errorf("%w: %s is a %s", entity.ErrNotAContainer, id, el.Type)
	}
	return nil
}

// Attach inserts a new element under the given container, appended last.
func (a *arena) Attach(el *entity.Element, containerId uuid.UUID) error {
	if el == nil || el.Id == uuid.Nil {
		return fmt.Errorf("%w: attach without an id", entity.ErrElementNotFound)
	}
	if _, exists := a.elements[el.Id]; exists {
		return fmt.Errorf("duplicate element id %s", el.Id)
	}
	if err := a.containerExists(containerId); err != nil {
		return err
	}
	a.elements[el.Id] = el
	a.parents[el.Id] = containerId
	a.children[containerId] = append(a.children[containerId], el.Id)
	return nil
}

// Reparent moves an element under another container, appended last. Moving a
// container into its own subtree is refused.
func (a *arena) Reparent(id, containerId uuid.UUID) error {
	if _, ok := a.elements[id]; !ok {
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if err := a.containerExists(containerId); err != nil {
		return err
	}
	if id == containerId || a.isAncestor(id, containerId) {
		return fmt.Errorf("%w: %s", entity.ErrHierarchyCycle, id)
	}
	current := a.parents[id]
	if current == containerId {
		return nil
	}
	a.dropChildRef(current, id)
	a.parents[id] = containerId
	a.children[containerId] = append(a.children[containerId], id)
	return nil
}

// Detach removes a childless element from the arena.
func (a *arena) Detach(id uuid.UUID) error {
	if _, ok := a.elements[id]; !ok {
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, id)
	}
	if len(a.children[id]) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrGroupNotEmpty, id)
	}
	a.dropChildRef(a.parents[id], id)
	delete(a.elements, id)
	delete(a.parents, id)
	delete(a.children, id)
	return nil
}

// removeSubtree removes an element together with everything nested under it
// and returns the removed ids, the root of the subtree first.
func (a *arena) removeSubtree(id uuid.UUID) []uuid.UUID {
	if _, ok := a.elements[id]; !ok {
		return nil
	}
	removed := a.subtree(id)
	a.dropChildRef(a.parents[id], id)
	for _, rid := range removed {
		delete(a.elements, rid)
		delete(a.parents, rid)
		delete(a.children, rid)
	}
	return removed
}

// subtree returns id plus all descendants, depth-first.
func (a *arena) subtree(id uuid.UUID) []uuid.UUID {
	out := []uuid.UUID{id}
	for _, child := range a.children[id] {
		out = append(out, a.subtree(child)...)
	}
	return out
}

// ancestors returns the container chain above id, root-first, excluding the
// root sentinel itself.
func (a *arena) ancestors(id uuid.UUID) []uuid.UUID {
	var chain []uuid.UUID
	current := a.parents[id]
	for current != uuid.Nil {
		chain = append([]uuid.UUID{current}, chain...)
		current = a.parents[current]
	}
	return chain
}

// isAncestor reports whether ancestor sits somewhere above id.
func (a *arena) isAncestor(ancestor, id uuid.UUID) bool {
	if ancestor == uuid.Nil {
		return false
	}
	current, ok := a.parents[id]
	for ok && current != uuid.Nil {
		if current == ancestor {
			return true
		}
		current, ok = a.parents[current]
	}
	return false
}

func (a *arena) dropChildRef(containerId, id uuid.UUID) {
	ids := a.children[containerId]
	for i, cid := range ids {
		if cid == id {
			a.children[containerId] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// maxZIndex returns the highest stacking index on a level, 0 when empty.
func (a *arena) maxZIndex(containerId uuid.UUID) int {
	max, seen := 0, false
	for _, id := range a.children[containerId] {
		el, ok := a.elements[id]
		if !ok {
			continue
		}
		if !seen || el.ZIndex > max {
			max = el.ZIndex
			seen = true
		}
	}
	return max
}

// minZIndex returns the lowest stacking index on a level, 0 when empty.
func (a *arena) minZIndex(containerId uuid.UUID) int {
	min, seen := 0, false
	for _, id := range a.children[containerId] {
		el, ok := a.elements[id]
		if !ok {
			continue
		}
		if !seen || el.ZIndex < min {
			min = el.ZIndex
			seen = true
		}
	}
	return min
}
