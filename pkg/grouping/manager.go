// Package grouping builds and dissolves composite Group elements on top of
// the element store. Members live as children of the group with positions
// relative to the group origin; ungrouping restores absolute coordinates so
// members are never orphaned.
package grouping

import (
	"fmt"

	"spatial-canvas-core/internal/entity"
	"spatial-canvas-core/internal/pkg/logger"
	"spatial-canvas-core/pkg/geometry"

	"github.com/google/uuid"
)

// Store is the slice of the element store the manager needs: live node
// access plus raw structural mutations. Dirty tracking, events and
// persistence stay with the caller.
type Store interface {
	// Element returns the live node for in-place geometry writes.
	Element(id uuid.UUID) (*entity.Element, bool)
	// Parent returns the container holding id; uuid.Nil means the root level.
	Parent(id uuid.UUID) (uuid.UUID, bool)
	// ChildIds returns the ordered children of a container level.
	ChildIds(containerId uuid.UUID) []uuid.UUID
	// Attach inserts a new element under the given container.
	Attach(el *entity.Element, containerId uuid.UUID) error
	// Reparent moves an element under another container, appended last.
	Reparent(id, containerId uuid.UUID) error
	// Detach removes an element; containers must be empty.
	Detach(id uuid.UUID) error
}

// Manager performs group lifecycle operations.
type Manager struct {
	padding   float64
	titleBand float64
	logger    logger.ILogger
}

// NewManager creates a group manager. padding is the gap kept around the
// member bounding box, titleBand the extra header strip above it.
func NewManager(padding, titleBand float64, log logger.ILogger) *Manager {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		padding:   padding,
		titleBand: titleBand,
		logger:    log,
	}
}

// CreateGroup wraps the given elements into a new group sized to their union
// bounding box plus padding and title band. Members must share a level; they
// are reparented under the group in their stacking order with positions
// rebased relative to the group origin.
func (m *Manager) CreateGroup(store Store, ids []uuid.UUID, title string) (uuid.UUID, error) {
	if len(ids) < 2 {
		m.logger.Warn("GROUP", "Refusing to group fewer than two elements", map[string]interface{}{
			"count": len(ids),
		})
		return uuid.Nil, fmt.Errorf("grouping needs at least two elements, got %d", len(ids))
	}

	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var members []*entity.Element
	var level uuid.UUID
	for i, id := range ids {
		el, ok := store.Element(id)
		if !ok {
			m.logger.Warn("GROUP", "Group member does not exist", map[string]interface{}{
				"element_id": id.String(),
			})
			return uuid.Nil, entity.ErrElementNotFound
		}
		parent, ok := store.Parent(id)
		if !ok {
			return uuid.Nil, entity.ErrElementNotFound
		}
		if i == 0 {
			level = parent
		} else if parent != level {
			m.logger.Warn("GROUP", "Group members span levels", map[string]interface{}{
				"element_id": id.String(),
			})
			return uuid.Nil, fmt.Errorf("group members must share a level")
		}
		members = append(members, el)
	}

	bounds := make([]geometry.Rect, len(members))
	maxZ := members[0].ZIndex
	for i, el := range members {
		bounds[i] = el.Bounds()
		if el.ZIndex > maxZ {
			maxZ = el.ZIndex
		}
	}
	union := geometry.UnionAll(bounds)

	group := entity.NewElement(entity.ElementTypeGroup, geometry.Point{
		X: union.X - m.padding,
		Y: union.Y - m.padding - m.titleBand,
	}, entity.DefaultData(entity.ElementTypeGroup))
	group.Size = geometry.Size{
		Width:  union.Width + 2*m.padding,
		Height: union.Height + 2*m.padding + m.titleBand,
	}
	group.Title = title
	group.ZIndex = maxZ

	if err := store.Attach(group, level); err != nil {
		return uuid.Nil, err
	}

	// Walk the level's stacking order so relative order survives inside the
	// group, then rebase each member onto the group origin.
	for _, id := range store.ChildIds(level) {
		if _, ok := wanted[id]; !ok {
			continue
		}
		el, ok := store.Element(id)
		if !ok {
			continue
		}
		if err := store.Reparent(id, group.Id); err != nil {
			return uuid.Nil, err
		}
		el.Position = el.Position.Sub(group.Position)
	}

	m.logger.Info("GROUP", "Group created", map[string]interface{}{
		"group_id": group.Id.String(),
		"members":  len(members),
	})
	return group.Id, nil
}

// Ungroup dissolves a group: children return to the group's level at
// absolute coordinates matching what the user sees, then the empty shell is
// removed. Member ids are returned in their stacking order.
func (m *Manager) Ungroup(store Store, groupId uuid.UUID) ([]uuid.UUID, error) {
	group, ok := store.Element(groupId)
	if !ok {
		m.logger.Warn("GROUP", "Ungroup of unknown element", map[string]interface{}{
			"group_id": groupId.String(),
		})
		return nil, entity.ErrElementNotFound
	}
	if group.Type != entity.ElementTypeGroup {
		m.logger.Warn("GROUP", "Ungroup of non-group element", map[string]interface{}{
			"element_id": groupId.String(),
			"type":       string(group.Type),
		})
		return nil, entity.ErrNotAGroup
	}

	level, ok := store.Parent(groupId)
	if !ok {
		return nil, entity.ErrElementNotFound
	}

	children := store.ChildIds(groupId)
	for _, childId := range children {
		child, ok := store.Element(childId)
		if !ok {
			continue
		}
		child.Position = group.Position.Add(child.Position)
		if err := store.Reparent(childId, level); err != nil {
			return nil, err
		}
	}

	if err := store.Detach(groupId); err != nil {
		return nil, err
	}

	m.logger.Info("GROUP", "Group dissolved", map[string]interface{}{
		"group_id": groupId.String(),
		"members":  len(children),
	})
	return children, nil
}

// AutoResize refits a group to its members' current geometry. It only acts
// on groups whose payload opts in via autoResize; member absolute positions
// never change, the container shifts and resizes around them.
func (m *Manager) AutoResize(store Store, groupId uuid.UUID) error {
	group, ok := store.Element(groupId)
	if !ok {
		m.logger.Warn("GROUP", "Auto-resize of unknown element", map[string]interface{}{
			"group_id": groupId.String(),
		})
		return entity.ErrElementNotFound
	}
	if group.Type != entity.ElementTypeGroup {
		m.logger.Warn("GROUP", "Auto-resize of non-group element", map[string]interface{}{
			"element_id": groupId.String(),
			"type":       string(group.Type),
		})
		return entity.ErrNotAGroup
	}
	if !autoResizeEnabled(group) {
		return nil
	}

	children := store.ChildIds(groupId)
	if len(children) == 0 {
		return nil
	}

	bounds := make([]geometry.Rect, 0, len(children))
	for _, childId := range children {
		if child, ok := store.Element(childId); ok {
			bounds = append(bounds, child.Bounds())
		}
	}
	union := geometry.UnionAll(bounds)

	// Shift the container so the member box sits padding (and title band)
	// away from its edges again, and rebase children to keep their absolute
	// positions.
	shift := geometry.Point{
		X: union.X - m.padding,
		Y: union.Y - m.padding - m.titleBand,
	}
	for _, childId := range children {
		if child, ok := store.Element(childId); ok {
			child.Position = child.Position.Sub(shift)
		}
	}
	group.Position = group.Position.Add(shift)
	group.Size = geometry.Size{
		Width:  union.Width + 2*m.padding,
		Height: union.Height + 2*m.padding + m.titleBand,
	}
	return nil
}

func autoResizeEnabled(group *entity.Element) bool {
	if group.Data == nil {
		return false
	}
	enabled, ok := group.Data["autoResize"].(bool)
	return ok && enabled
}
