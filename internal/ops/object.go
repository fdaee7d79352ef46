package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/mooparse"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

func objectOperations() []*Operation {
	return []*Operation{
		{Name: "object/get", Routes: []string{"/api/object/get"}, ResponseType: "text/x-moo", Execute: objectGet},
		{Name: "object/update", Routes: []string{"/api/object/update"}, ResponseType: "application/json", Execute: objectUpdate},
		{Name: "object/rename", Routes: []string{"/api/object/rename"}, ResponseType: "application/json", Execute: objectRename},
		{Name: "object/delete", Routes: []string{"/api/object/delete"}, ResponseType: "application/json", Execute: objectDelete},
		{Name: "object/list", Routes: []string{"/api/object/list"}, ResponseType: "application/json", Execute: objectList},
		{Name: "object/verb/rename", Routes: []string{"/api/object/verb/rename"}, ResponseType: "application/json", Execute: objectVerbRename},
		{Name: "object/property/rename", Routes: []string{"/api/object/property/rename"}, ResponseType: "application/json", Execute: objectPropertyRename},
	}
}

func objectGet(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "object/get <name>"); err != nil {
		return nil, err
	}
	name := args[0]

	digest, ok, err := resolveCurrentDigest(p, types.MooObject, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.NotFound, "no object %q", name)
	}
	content, ok, err := p.Objects.Get(digest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.StorageError, "ref for %q points at missing blob %s", name, digest)
	}

	if m, ok := metaResolver(p)(name); ok {
		def, err := mooparse.Parse(content)
		if err != nil {
			return nil, opserr.Wrap(opserr.ParseError, err, "parse object %q", name)
		}
		applyMetaFilter(def, m)
		content = mooparse.Dump(def)
	}
	return content, nil
}

func applyMetaFilter(def *mooparse.ObjDef, m *types.MetaObject) {
	if len(m.IgnoredVerbs) > 0 {
		kept := def.Verbs[:0]
		for _, v := range def.Verbs {
			if _, ignored := m.IgnoredVerbs[v.FirstAlias()]; !ignored {
				kept = append(kept, v)
			}
		}
		def.Verbs = kept
	}
	if len(m.IgnoredProperties) > 0 {
		kept := def.Properties[:0]
		for _, prop := range def.Properties {
			if _, ignored := m.IgnoredProperties[prop.Name]; !ignored {
				kept = append(kept, prop)
			}
		}
		def.Properties = kept
	}
}

func objectUpdate(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 2, "object/update <name> <dump>"); err != nil {
		return nil, err
	}
	name, rawContent := args[0], args[1]

	content := rawContent
	if m, ok := metaResolver(p)(name); ok {
		def, err := mooparse.Parse(rawContent)
		if err != nil {
			return nil, opserr.Wrap(opserr.ParseError, err, "parse object %q", name)
		}
		applyMetaFilter(def, m)
		content = mooparse.Dump(def)
	}

	c, err := p.Change.GetOrCreateLocal(user.ID)
	if err != nil {
		return nil, err
	}

	digest := objects.GenerateSHA256(content)
	currentDigest, existed, err := resolveCurrentDigest(p, types.MooObject, name)
	if err != nil {
		return nil, err
	}
	if existed && currentDigest == digest {
		return "no-op: content unchanged", nil
	}

	version, inAdded, inModified := liveListsContain(c, types.MooObject, name)
	if !inAdded && !inModified {
		version, err = p.Refs.GetNextVersion(types.MooObject, name)
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.Objects.Store(content); err != nil {
		return nil, err
	}
	if err := p.Refs.UpdateRef(types.MooObject, name, version, digest); err != nil {
		return nil, err
	}

	info := types.ObjectInfo{Type: types.MooObject, Name: name, Version: version}
	switch {
	case inAdded:
		c.AddedObjects = upsertObjectInfo(c.AddedObjects, info)
	case inModified:
		c.ModifiedObjects = upsertObjectInfo(c.ModifiedObjects, info)
	case !existed:
		c.AddedObjects = upsertObjectInfo(c.AddedObjects, info)
	default:
		c.ModifiedObjects = upsertObjectInfo(c.ModifiedObjects, info)
	}

	if err := p.Index.UpdateChange(c); err != nil {
		return nil, err
	}
	return map[string]any{"name": name, "version": version, "digest": digest}, nil
}

func objectRename(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 2, "object/rename <from> <to>"); err != nil {
		return nil, err
	}
	from, to := args[0], args[1]
	if from == to {
		return nil, opserr.New(opserr.InvalidArgument, "rename target equals source %q", from)
	}
	if _, found, err := resolveCurrentDigest(p, types.MooObject, to); err != nil {
		return nil, err
	} else if found {
		return nil, opserr.New(opserr.Conflict, "object %q already exists", to)
	}

	c, err := p.Change.GetOrCreateLocal(user.ID)
	if err != nil {
		return nil, err
	}
	fromInfo, found, err := p.Index.ResolveObjectCurrentInfo(types.MooObject, from)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, opserr.New(opserr.NotFound, "no object %q", from)
	}
	digest, found, err := p.Refs.GetRef(types.MooObject, from, &fromInfo.Version)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, opserr.New(opserr.StorageError, "ref for %q missing digest", from)
	}

	toVersion, err := p.Refs.GetNextVersion(types.MooObject, to)
	if err != nil {
		return nil, err
	}
	if err := p.Refs.UpdateRef(types.MooObject, to, toVersion, digest); err != nil {
		return nil, err
	}
	toInfo := types.ObjectInfo{Type: types.MooObject, Name: to, Version: toVersion}

	baseInfo, inBaseline, err := p.Index.BaselineInfo(types.MooObject, from)
	if err != nil {
		return nil, err
	}

	switch {
	case containsObjectInfo(c.AddedObjects, types.MooObject, from):
		c.AddedObjects = renameObjectInfo(c.AddedObjects, types.MooObject, from, toInfo)
	case containsObjectInfo(c.ModifiedObjects, types.MooObject, from):
		c.ModifiedObjects = renameObjectInfo(c.ModifiedObjects, types.MooObject, from, toInfo)
		origin := baseInfo
		if !inBaseline {
			origin = fromInfo
		}
		c.RenamedObjects = append(c.RenamedObjects, types.RenamedObject{From: origin, To: toInfo})
	default:
		origin := fromInfo
		if inBaseline {
			origin = baseInfo
		}
		c.RenamedObjects = append(c.RenamedObjects, types.RenamedObject{From: origin, To: toInfo})
	}

	if err := p.Index.UpdateChange(c); err != nil {
		return nil, err
	}
	return map[string]any{"from": from, "to": to, "version": toVersion}, nil
}

func containsObjectInfo(list []types.ObjectInfo, t types.ObjectType, name string) bool {
	for _, info := range list {
		if info.Type == t && info.Name == name {
			return true
		}
	}
	return false
}

func renameObjectInfo(list []types.ObjectInfo, t types.ObjectType, from string, to types.ObjectInfo) []types.ObjectInfo {
	for i, info := range list {
		if info.Type == t && info.Name == from {
			list[i] = to
		}
	}
	return list
}

func objectDelete(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "object/delete <name>"); err != nil {
		return nil, err
	}
	name := args[0]

	c, err := p.Change.GetOrCreateLocal(user.ID)
	if err != nil {
		return nil, err
	}

	if containsObjectInfo(c.AddedObjects, types.MooObject, name) {
		c.AddedObjects = removeObjectInfo(c.AddedObjects, types.MooObject, name)
		if err := p.Index.UpdateChange(c); err != nil {
			return nil, err
		}
		return "deleted (was never merged)", nil
	}

	// If name is the to-side of a rename in this change, record the
	// original baseline identity as deleted instead (§4.6.3).
	for i, r := range c.RenamedObjects {
		if r.To.Type == types.MooObject && r.To.Name == name {
			c.RenamedObjects = append(c.RenamedObjects[:i], c.RenamedObjects[i+1:]...)
			c.DeletedObjects = upsertObjectInfo(c.DeletedObjects, r.From)
			if err := p.Index.UpdateChange(c); err != nil {
				return nil, err
			}
			return "deleted", nil
		}
	}

	if containsObjectInfo(c.ModifiedObjects, types.MooObject, name) {
		c.ModifiedObjects = removeObjectInfo(c.ModifiedObjects, types.MooObject, name)
	}

	baseInfo, inBaseline, err := p.Index.BaselineInfo(types.MooObject, name)
	if err != nil {
		return nil, err
	}
	if !inBaseline {
		return nil, opserr.New(opserr.NotFound, "no object %q", name)
	}
	c.DeletedObjects = upsertObjectInfo(c.DeletedObjects, baseInfo)

	if err := p.Index.UpdateChange(c); err != nil {
		return nil, err
	}
	return "deleted", nil
}

func objectList(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	infos, err := p.Index.ComputeCompleteObjectList()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Type == types.MooObject {
			names = append(names, info.Name)
		}
	}
	return names, nil
}

func objectVerbRename(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 3, "object/verb/rename <object> <from> <to>"); err != nil {
		return nil, err
	}
	c, err := p.Change.GetOrCreateLocal(user.ID)
	if err != nil {
		return nil, err
	}
	c.VerbRenameHints = append(c.VerbRenameHints, types.VerbRenameHint{ObjectName: args[0], FromVerb: args[1], ToVerb: args[2]})
	if err := p.Index.UpdateChange(c); err != nil {
		return nil, err
	}
	return "ok", nil
}

func objectPropertyRename(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 3, "object/property/rename <object> <from> <to>"); err != nil {
		return nil, err
	}
	c, err := p.Change.GetOrCreateLocal(user.ID)
	if err != nil {
		return nil, err
	}
	c.PropertyRenameHints = append(c.PropertyRenameHints, types.PropertyRenameHint{ObjectName: args[0], FromProp: args[1], ToProp: args[2]})
	if err := p.Index.UpdateChange(c); err != nil {
		return nil, err
	}
	return "ok", nil
}
