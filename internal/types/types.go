// Package types holds the core entities of the object store and change
// log: object identity, the Change record, and the fixed enumerations
// that drive the workflow state machine.
package types

// ObjectType is the closed enumeration of object kinds the store tracks.
type ObjectType string

const (
	MooObject     ObjectType = "MooObject"
	MooMetaObject ObjectType = "MooMetaObject"
)

// ObjectInfo identifies a specific version of a named object.
type ObjectInfo struct {
	Type    ObjectType `json:"type"`
	Name    string     `json:"name"`
	Version uint64     `json:"version"`
}

// RenamedObject records a rename within a change: the ObjectInfo the
// object had at the start of the change and the one it has now.
type RenamedObject struct {
	From ObjectInfo `json:"from"`
	To   ObjectInfo `json:"to"`
}

// VerbRenameHint records a caller-asserted verb rename within a change.
type VerbRenameHint struct {
	ObjectName string `json:"object_name"`
	FromVerb   string `json:"from_verb"`
	ToVerb     string `json:"to_verb"`
}

// PropertyRenameHint records a caller-asserted property rename within a change.
type PropertyRenameHint struct {
	ObjectName string `json:"object_name"`
	FromProp   string `json:"from_prop"`
	ToProp     string `json:"to_prop"`
}

// ChangeStatus is the closed enumeration of states a Change can occupy.
type ChangeStatus string

const (
	StatusLocal  ChangeStatus = "Local"
	StatusMerged ChangeStatus = "Merged"
	StatusReview ChangeStatus = "Review"
	StatusIdle   ChangeStatus = "Idle"
)

// Change is the unit of mutation: a coherent set of added, modified,
// deleted, and renamed objects plus rename hints used by the diff engine.
type Change struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Author      string       `json:"author"`
	Timestamp   int64        `json:"timestamp"`
	Status      ChangeStatus `json:"status"`

	AddedObjects    []ObjectInfo    `json:"added_objects,omitempty"`
	ModifiedObjects []ObjectInfo    `json:"modified_objects,omitempty"`
	DeletedObjects  []ObjectInfo    `json:"deleted_objects,omitempty"`
	RenamedObjects  []RenamedObject `json:"renamed_objects,omitempty"`

	VerbRenameHints     []VerbRenameHint     `json:"verb_rename_hints,omitempty"`
	PropertyRenameHints []PropertyRenameHint `json:"property_rename_hints,omitempty"`

	IndexChangeID string `json:"index_change_id,omitempty"`
}

// MetaObject controls verb/property filtering for its parent MooObject.
type MetaObject struct {
	IgnoredVerbs      map[string]struct{} `yaml:"-" json:"-"`
	IgnoredProperties map[string]struct{} `yaml:"-" json:"-"`
}

// Permission is one of the closed set of grantable capabilities (§6.4).
type Permission string

const (
	PermApproveChanges    Permission = "ApproveChanges"
	PermSubmitChanges     Permission = "SubmitChanges"
	PermClone             Permission = "Clone"
	PermCreateUser        Permission = "CreateUser"
	PermDisableUser       Permission = "DisableUser"
	PermDeleteUser        Permission = "DeleteUser"
	PermManagePermissions Permission = "ManagePermissions"
	PermManageApiKeys     Permission = "ManageApiKeys"
)

// AllPermissions is the closed set, used to validate grants and to seed Wizard.
var AllPermissions = []Permission{
	PermApproveChanges,
	PermSubmitChanges,
	PermClone,
	PermCreateUser,
	PermDisableUser,
	PermDeleteUser,
	PermManagePermissions,
	PermManageApiKeys,
}

// User is an account in the Users partition (F).
type User struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	VObj        int64                  `json:"v_obj"`
	APIKeys     map[string]struct{}    `json:"api_keys"`
	Permissions map[Permission]struct{} `json:"permissions"`
	Disabled    bool                   `json:"disabled"`
	System      bool                   `json:"system"`
}

// System user ids that can never be deleted or disabled (§3.3-7).
const (
	Wizard   = "Wizard"
	Everyone = "Everyone"
)

// HasPermission reports whether u holds p.
func (u *User) HasPermission(p Permission) bool {
	if u == nil {
		return false
	}
	_, ok := u.Permissions[p]
	return ok
}
