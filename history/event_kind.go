package history

import (
	"fmt"
)

// EventKind classifies a lifecycle event. The integer value is the code stored in history rows.
type EventKind int

const (
	Created EventKind = 1
	Updated EventKind = 2
	Deleted EventKind = 3
	Read    EventKind = 4
)

// String provides a string representation of EventKind for logging and reports.
func (k EventKind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Updated:
		return "UPDATED"
	case Deleted:
		return "DELETED"
	case Read:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

// Hook is the name of a lifecycle point of the host data-model layer.
type Hook string

const (
	HookAfterCreate      Hook = "afterCreate"
	HookAfterUpdate      Hook = "afterUpdate"
	HookAfterDestroy     Hook = "afterDestroy"
	HookAfterSave        Hook = "afterSave"
	HookAfterBulkCreate  Hook = "afterBulkCreate"
	HookAfterBulkUpdate  Hook = "afterBulkUpdate"
	HookAfterFind        Hook = "afterFind"
	HookBeforeCreate     Hook = "beforeCreate"
	HookBeforeUpdate     Hook = "beforeUpdate"
	HookBeforeDestroy    Hook = "beforeDestroy"
	HookBeforeSave       Hook = "beforeSave"
	HookBeforeBulkCreate Hook = "beforeBulkCreate"
	HookBeforeBulkUpdate Hook = "beforeBulkUpdate"
	HookBeforeFind       Hook = "beforeFind"
)

// DefaultHooks are the hooks observed when no hooks are configured.
func DefaultHooks() []Hook {
	return []Hook{
		HookAfterCreate,
		HookAfterUpdate,
		HookAfterBulkCreate,
		HookAfterBulkUpdate,
		HookAfterDestroy,
	}
}

// EventKindForHook maps a hook name to its event kind.
// Both the before and the after variant of a lifecycle point map to the same kind.
func EventKindForHook(hook Hook) (EventKind, error) {
	switch hook {
	case HookBeforeCreate, HookBeforeBulkCreate, HookAfterCreate, HookAfterBulkCreate:
		return Created, nil
	case HookBeforeBulkUpdate, HookBeforeUpdate, HookAfterBulkUpdate, HookAfterUpdate:
		return Updated, nil
	case HookBeforeDestroy, HookAfterDestroy:
		return Deleted, nil
	case HookBeforeFind, HookAfterFind:
		return Read, nil
	}

	return 0, fmt.Errorf("%w %s", ErrUnknownHook, hook)
}

// IsBulk reports whether the hook fires once for a whole bulk write.
func (h Hook) IsBulk() bool {
	switch h {
	case HookBeforeBulkCreate, HookAfterBulkCreate, HookBeforeBulkUpdate, HookAfterBulkUpdate:
		return true
	default:
		return false
	}
}

// individualCounterpart returns the per-instance hook fired for each instance of a bulk write.
func (h Hook) individualCounterpart() (Hook, bool) {
	switch h {
	case HookBeforeBulkCreate:
		return HookBeforeCreate, true
	case HookAfterBulkCreate:
		return HookAfterCreate, true
	case HookBeforeBulkUpdate:
		return HookBeforeUpdate, true
	case HookAfterBulkUpdate:
		return HookAfterUpdate, true
	default:
		return "", false
	}
}
