package ops

import (
	"github.com/untoldecay/moobase/internal/objdiff"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

// baselineContentResolver adapts Providers into an objdiff.BaselineContent.
func baselineContentResolver(p *Providers) objdiff.BaselineContent {
	return func(t types.ObjectType, name string) (string, bool, error) {
		info, ok, err := p.Index.BaselineInfo(t, name)
		if err != nil || !ok {
			return "", false, err
		}
		digest, ok, err := p.Refs.GetRef(t, name, &info.Version)
		if err != nil || !ok {
			return "", false, err
		}
		content, ok, err := p.Objects.Get(digest)
		if err != nil || !ok {
			return "", false, err
		}
		return content, true, nil
	}
}

// localContentResolver adapts Providers into an objdiff.LocalContent.
func localContentResolver(p *Providers) objdiff.LocalContent {
	return func(info types.ObjectInfo) (string, error) {
		digest, ok, err := p.Refs.GetRef(info.Type, info.Name, &info.Version)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", opserr.New(opserr.NotFound, "no ref %s:%s@%d", info.Type, info.Name, info.Version)
		}
		content, ok, err := p.Objects.Get(digest)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", opserr.New(opserr.NotFound, "no blob for %s:%s@%d", info.Type, info.Name, info.Version)
		}
		return content, nil
	}
}

// metaResolver resolves the MetaObject stored alongside name, if any.
func metaResolver(p *Providers) objdiff.MetaFor {
	return func(name string) (*types.MetaObject, bool) {
		info, ok, err := p.Index.BaselineInfo(types.MooMetaObject, name)
		if err != nil || !ok {
			return nil, false
		}
		digest, ok, err := p.Refs.GetRef(types.MooMetaObject, name, &info.Version)
		if err != nil || !ok {
			return nil, false
		}
		content, ok, err := p.Objects.Get(digest)
		if err != nil || !ok {
			return nil, false
		}
		m, err := objects.ParseMetaDump(content)
		if err != nil {
			return nil, false
		}
		return m, true
	}
}

// resolveCurrentDigest returns what a reader of (t,name) sees now,
// combining the merged baseline with the in-flight local change
// (§4.3 resolve_object_current_state).
func resolveCurrentDigest(p *Providers, t types.ObjectType, name string) (digest string, found bool, err error) {
	return p.Index.ResolveObjectCurrentState(t, name, func(info types.ObjectInfo) (string, bool, error) {
		return p.Refs.GetRef(info.Type, info.Name, &info.Version)
	})
}

// liveListsContain reports whether name already appears in added or
// modified within c, returning its current recorded version (§4.6.2-4).
func liveListsContain(c *types.Change, t types.ObjectType, name string) (version uint64, inAdded, inModified bool) {
	for _, info := range c.AddedObjects {
		if info.Type == t && info.Name == name {
			return info.Version, true, false
		}
	}
	for _, info := range c.ModifiedObjects {
		if info.Type == t && info.Name == name {
			return info.Version, false, true
		}
	}
	return 0, false, false
}

func removeObjectInfo(list []types.ObjectInfo, t types.ObjectType, name string) []types.ObjectInfo {
	out := list[:0]
	for _, info := range list {
		if info.Type == t && info.Name == name {
			continue
		}
		out = append(out, info)
	}
	return out
}

func upsertObjectInfo(list []types.ObjectInfo, info types.ObjectInfo) []types.ObjectInfo {
	for i, existing := range list {
		if existing.Type == info.Type && existing.Name == info.Name {
			list[i] = info
			return list
		}
	}
	return append(list, info)
}

// writeObjectContent runs the common write sequencing of §4.6.2 steps
// 3-6 for a single (t,name) write already filtered/finalised by the
// caller, leaving step 7 (persisting the change record) to it.
func writeObjectContent(p *Providers, c *types.Change, t types.ObjectType, name, content string) (version uint64, digest string, noop bool, err error) {
	digest = objects.GenerateSHA256(content)
	currentDigest, existed, err := resolveCurrentDigest(p, t, name)
	if err != nil {
		return 0, "", false, err
	}
	if existed && currentDigest == digest {
		return 0, digest, true, nil
	}

	version, inAdded, inModified := liveListsContain(c, t, name)
	if !inAdded && !inModified {
		if version, err = p.Refs.GetNextVersion(t, name); err != nil {
			return 0, "", false, err
		}
	}

	if _, err := p.Objects.Store(content); err != nil {
		return 0, "", false, err
	}
	if err := p.Refs.UpdateRef(t, name, version, digest); err != nil {
		return 0, "", false, err
	}

	info := types.ObjectInfo{Type: t, Name: name, Version: version}
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
	return version, digest, false, nil
}
