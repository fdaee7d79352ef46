// Package objdiff is the structural diff engine (component H): it
// reconstructs per-verb and per-property deltas between a baseline and
// a local object definition, honouring caller-asserted rename hints and
// per-object meta filters, and assembles the change-level ObjectDiff
// consumed by change/status, change/approve, change/submit and
// change/abandon (spec §4.5).
package objdiff

import (
	"github.com/untoldecay/moobase/internal/mooparse"
	"github.com/untoldecay/moobase/internal/types"
)

// ObjectChange is the structural delta for one modified object.
type ObjectChange struct {
	ObjID string `json:"obj_id"`

	VerbsAdded    map[string]struct{} `json:"verbs_added,omitempty"`
	VerbsModified map[string]struct{} `json:"verbs_modified,omitempty"`
	VerbsDeleted  map[string]struct{} `json:"verbs_deleted,omitempty"`
	VerbsRenamed  map[string]string   `json:"verbs_renamed,omitempty"`

	PropsAdded    map[string]struct{} `json:"props_added,omitempty"`
	PropsModified map[string]struct{} `json:"props_modified,omitempty"`
	PropsDeleted  map[string]struct{} `json:"props_deleted,omitempty"`
	PropsRenamed  map[string]string   `json:"props_renamed,omitempty"`
}

// ObjectDiff is the full change-level diff (§4.5.1).
type ObjectDiff struct {
	ObjectsRenamed  map[string]string   `json:"objects_renamed,omitempty"`
	ObjectsAdded    map[string]struct{} `json:"objects_added,omitempty"`
	ObjectsDeleted  map[string]struct{} `json:"objects_deleted,omitempty"`
	ObjectsModified map[string]struct{} `json:"objects_modified,omitempty"`
	Changes         []ObjectChange      `json:"changes,omitempty"`
}

func newObjectDiff() *ObjectDiff {
	return &ObjectDiff{
		ObjectsRenamed:  map[string]string{},
		ObjectsAdded:    map[string]struct{}{},
		ObjectsDeleted:  map[string]struct{}{},
		ObjectsModified: map[string]struct{}{},
	}
}

// ObjIDToObjectName implements the Glossary's obj_id_to_object_name:
// when raw is present and differs from name, the presentation name is
// name with its first ASCII letter uppercased; otherwise name itself.
func ObjIDToObjectName(name, raw string) string {
	if raw == "" || raw == name {
		return name
	}
	if name == "" {
		return name
	}
	b := []byte(name)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// presentObjectName derives the presentation form of a stored object
// key for diff output (§4.5.2-1). This store keeps only one name per
// object (no separate numeric #oid distinct from the human name), so
// the raw #oid form is the stored key itself and its capitalised
// spelling is the candidate display name fed through
// ObjIDToObjectName.
func presentObjectName(raw string) string {
	if raw == "" {
		return raw
	}
	b := []byte(raw)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return ObjIDToObjectName(string(b), raw)
}

// BaselineContent resolves the baseline (merged-tip) dump for (t,name).
type BaselineContent func(t types.ObjectType, name string) (content string, found bool, err error)

// LocalContent resolves the dump stored at info, which the caller
// already knows exists because it came from the change's own lists.
type LocalContent func(info types.ObjectInfo) (content string, err error)

// MetaFor resolves a MetaObject for name, if one has been set.
type MetaFor func(name string) (*types.MetaObject, bool)

// DiffChange builds the full ObjectDiff for c against the merged
// baseline (§4.5.2). Entries of c's lists whose type is not MooObject
// (MooMetaObject entries) are skipped here, so they never appear on
// the public surface (§4.5.2-3).
func DiffChange(c *types.Change, baseline BaselineContent, local LocalContent, meta MetaFor) (*ObjectDiff, error) {
	d := newObjectDiff()

	for _, info := range c.AddedObjects {
		if info.Type != types.MooObject {
			continue
		}
		d.ObjectsAdded[presentObjectName(info.Name)] = struct{}{}
	}
	for _, info := range c.DeletedObjects {
		if info.Type != types.MooObject {
			continue
		}
		d.ObjectsDeleted[presentObjectName(info.Name)] = struct{}{}
	}
	for _, r := range c.RenamedObjects {
		if r.To.Type != types.MooObject {
			continue
		}
		d.ObjectsRenamed[presentObjectName(r.From.Name)] = presentObjectName(r.To.Name)
	}

	for _, info := range c.ModifiedObjects {
		if info.Type != types.MooObject {
			continue
		}
		d.ObjectsModified[presentObjectName(info.Name)] = struct{}{}

		baseText, found, err := baseline(info.Type, info.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		localText, err := local(info)
		if err != nil {
			return nil, err
		}

		oc, err := diffObject(info.Name, baseText, localText, c, meta)
		if err != nil {
			return nil, err
		}
		d.Changes = append(d.Changes, *oc)
	}

	return d, nil
}

// diffObject runs the §4.5.3 structural diff between a baseline and
// local object definition, filtered by verb/property rename hints
// scoped to name and any meta ignore lists.
func diffObject(name, baselineText, localText string, c *types.Change, meta MetaFor) (*ObjectChange, error) {
	baseDef, err := mooparse.Parse(baselineText)
	if err != nil {
		return nil, err
	}
	localDef, err := mooparse.Parse(localText)
	if err != nil {
		return nil, err
	}

	verbHints := collapsedVerbHints(c, name)
	propHints := collapsedPropHints(c, name)

	var m *types.MetaObject
	if meta != nil {
		m, _ = meta(name)
	}

	oc := &ObjectChange{
		ObjID:         presentObjectName(name),
		VerbsAdded:    map[string]struct{}{},
		VerbsModified: map[string]struct{}{},
		VerbsDeleted:  map[string]struct{}{},
		VerbsRenamed:  map[string]string{},
		PropsAdded:    map[string]struct{}{},
		PropsModified: map[string]struct{}{},
		PropsDeleted:  map[string]struct{}{},
		PropsRenamed:  map[string]string{},
	}

	diffVerbs(oc, baseDef.Verbs, localDef.Verbs, verbHints)
	diffProps(oc, baseDef.Properties, localDef.Properties, propHints)

	if m != nil {
		filterIgnoredVerbs(oc, m.IgnoredVerbs)
		filterIgnoredProperties(oc, m.IgnoredProperties)
	}

	return oc, nil
}

func collapsedVerbHints(c *types.Change, objName string) map[string]string {
	hints := map[string]string{}
	for _, h := range c.VerbRenameHints {
		if h.ObjectName != objName {
			continue
		}
		hints = collapseRenameHints(hints, h.FromVerb, h.ToVerb)
	}
	return hints
}

func collapsedPropHints(c *types.Change, objName string) map[string]string {
	hints := map[string]string{}
	for _, h := range c.PropertyRenameHints {
		if h.ObjectName != objName {
			continue
		}
		hints = collapseRenameHints(hints, h.FromProp, h.ToProp)
	}
	return hints
}

// diffVerbs implements §4.5.3's verb algorithm: alias-set matching,
// hint-driven renames first, then structural compare of the remainder.
func diffVerbs(oc *ObjectChange, base, local []mooparse.Verb, hints map[string]string) {
	baseUsed := make([]bool, len(base))
	localUsed := make([]bool, len(local))

	baseByAlias := indexByFirstAlias(base)
	localByAlias := indexByFirstAlias(local)

	for from, to := range hints {
		bi, bok := baseByAlias[from]
		li, lok := localByAlias[to]
		if !bok || !lok || baseUsed[bi] || localUsed[li] {
			continue
		}
		baseUsed[bi], localUsed[li] = true, true
		oc.VerbsRenamed[from] = to
		if mooparse.NormalizeBody(base[bi].Body) != mooparse.NormalizeBody(local[li].Body) ||
			!sameAliasSignature(base[bi], local[li]) {
			oc.VerbsModified[to] = struct{}{}
		}
	}

	for bi, bv := range base {
		if baseUsed[bi] {
			continue
		}
		li, ok := matchVerbByAliasIntersection(bv, local, localUsed)
		if !ok {
			continue
		}
		baseUsed[bi], localUsed[li] = true, true
		if mooparse.NormalizeBody(bv.Body) != mooparse.NormalizeBody(local[li].Body) {
			oc.VerbsModified[local[li].FirstAlias()] = struct{}{}
		}
	}

	for bi, bv := range base {
		if !baseUsed[bi] {
			oc.VerbsDeleted[bv.FirstAlias()] = struct{}{}
		}
	}
	for li, lv := range local {
		if !localUsed[li] {
			oc.VerbsAdded[lv.FirstAlias()] = struct{}{}
		}
	}
}

func indexByFirstAlias(verbs []mooparse.Verb) map[string]int {
	out := make(map[string]int, len(verbs))
	for i, v := range verbs {
		out[v.FirstAlias()] = i
	}
	return out
}

func sameAliasSignature(a, b mooparse.Verb) bool {
	as, bs := a.AliasSet(), b.AliasSet()
	if len(as) != len(bs) {
		return false
	}
	for alias := range as {
		if _, ok := bs[alias]; !ok {
			return false
		}
	}
	return true
}

func matchVerbByAliasIntersection(bv mooparse.Verb, local []mooparse.Verb, localUsed []bool) (int, bool) {
	baseAliases := bv.AliasSet()
	for li, lv := range local {
		if localUsed[li] {
			continue
		}
		for alias := range lv.AliasSet() {
			if _, ok := baseAliases[alias]; ok {
				return li, true
			}
		}
	}
	return 0, false
}

func diffProps(oc *ObjectChange, base, local []mooparse.Property, hints map[string]string) {
	baseUsed := make([]bool, len(base))
	localUsed := make([]bool, len(local))

	baseByName := make(map[string]int, len(base))
	for i, p := range base {
		baseByName[p.Name] = i
	}
	localByName := make(map[string]int, len(local))
	for i, p := range local {
		localByName[p.Name] = i
	}

	for from, to := range hints {
		bi, bok := baseByName[from]
		li, lok := localByName[to]
		if !bok || !lok || baseUsed[bi] || localUsed[li] {
			continue
		}
		baseUsed[bi], localUsed[li] = true, true
		oc.PropsRenamed[from] = to
		if base[bi].Value != local[li].Value {
			oc.PropsModified[to] = struct{}{}
		}
	}

	for name, bi := range baseByName {
		if baseUsed[bi] {
			continue
		}
		li, ok := localByName[name]
		if !ok || localUsed[li] {
			continue
		}
		baseUsed[bi], localUsed[li] = true, true
		if base[bi].Value != local[li].Value {
			oc.PropsModified[name] = struct{}{}
		}
	}

	for name, bi := range baseByName {
		if !baseUsed[bi] {
			oc.PropsDeleted[name] = struct{}{}
		}
	}
	for name, li := range localByName {
		if !localUsed[li] {
			oc.PropsAdded[name] = struct{}{}
		}
	}
}

func filterIgnoredVerbs(oc *ObjectChange, ignored map[string]struct{}) {
	for alias := range ignored {
		delete(oc.VerbsAdded, alias)
		delete(oc.VerbsModified, alias)
		delete(oc.VerbsDeleted, alias)
		delete(oc.VerbsRenamed, alias)
		for from, to := range oc.VerbsRenamed {
			if to == alias {
				delete(oc.VerbsRenamed, from)
			}
		}
	}
}

func filterIgnoredProperties(oc *ObjectChange, ignored map[string]struct{}) {
	for name := range ignored {
		delete(oc.PropsAdded, name)
		delete(oc.PropsModified, name)
		delete(oc.PropsDeleted, name)
		delete(oc.PropsRenamed, name)
		for from, to := range oc.PropsRenamed {
			if to == name {
				delete(oc.PropsRenamed, from)
			}
		}
	}
}

// Invert returns the "undo" diff for abandon/submit/stash (§4.5.4):
// added<->deleted swap, renames reverse direction, modified entries
// keep their object name but the ObjectChange inside them should have
// been computed local->baseline by the caller (DiffChange is itself
// symmetric — callers wanting the inverse direction simply swap the
// baseline/local resolvers and call DiffChange again; Invert here
// handles the cheap set-level inversion when the caller already has a
// forward ObjectDiff and only needs the object-level relabelling).
func Invert(d *ObjectDiff) *ObjectDiff {
	out := newObjectDiff()
	for from, to := range d.ObjectsRenamed {
		out.ObjectsRenamed[to] = from
	}
	for name := range d.ObjectsAdded {
		out.ObjectsDeleted[name] = struct{}{}
	}
	for name := range d.ObjectsDeleted {
		out.ObjectsAdded[name] = struct{}{}
	}
	for name := range d.ObjectsModified {
		out.ObjectsModified[name] = struct{}{}
	}
	out.Changes = d.Changes
	return out
}
