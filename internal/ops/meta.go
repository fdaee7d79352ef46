package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

func metaOperations() []*Operation {
	return []*Operation{
		{Name: "meta/add_ignored_property", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			if len(args) < 1 {
				return opserr.New(opserr.InvalidArgument, "usage: meta/add_ignored_property <object> <property>")
			}
			m.IgnoredProperties[args[0]] = struct{}{}
			return nil
		}, 2)},
		{Name: "meta/add_ignored_verb", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			if len(args) < 1 {
				return opserr.New(opserr.InvalidArgument, "usage: meta/add_ignored_verb <object> <verb>")
			}
			m.IgnoredVerbs[args[0]] = struct{}{}
			return nil
		}, 2)},
		{Name: "meta/remove_ignored_property", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			delete(m.IgnoredProperties, args[0])
			return nil
		}, 2)},
		{Name: "meta/remove_ignored_verb", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			delete(m.IgnoredVerbs, args[0])
			return nil
		}, 2)},
		{Name: "meta/clear_ignored_properties", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			m.IgnoredProperties = map[string]struct{}{}
			return nil
		}, 1)},
		{Name: "meta/clear_ignored_verbs", Execute: metaMutate(func(m *types.MetaObject, args []string) error {
			m.IgnoredVerbs = map[string]struct{}{}
			return nil
		}, 1)},
	}
}

// metaMutate builds an Execute that loads the current MetaObject for
// args[0] (args[1:] are the mutator's own arguments), applies fn, and
// stores the resulting dump (§4.5.5, §6.2).
func metaMutate(fn func(m *types.MetaObject, rest []string) error, minArgs int) Execute {
	return func(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
		if err := requireArgs(args, minArgs, "meta/* <object> [...]"); err != nil {
			return nil, err
		}
		name := args[0]
		rest := args[1:]

		c, err := p.Change.GetOrCreateLocal(user.ID)
		if err != nil {
			return nil, err
		}

		m, err := loadOrCreateMeta(p, name)
		if err != nil {
			return nil, err
		}
		if err := fn(m, rest); err != nil {
			return nil, err
		}

		dump, err := objects.GenerateMetaDump(m)
		if err != nil {
			return nil, err
		}
		if _, _, _, err := writeObjectContent(p, c, types.MooMetaObject, name, dump); err != nil {
			return nil, err
		}
		if err := p.Index.UpdateChange(c); err != nil {
			return nil, err
		}
		return "ok", nil
	}
}

func loadOrCreateMeta(p *Providers, name string) (*types.MetaObject, error) {
	digest, ok, err := resolveCurrentDigest(p, types.MooMetaObject, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.MetaObject{IgnoredVerbs: map[string]struct{}{}, IgnoredProperties: map[string]struct{}{}}, nil
	}
	content, ok, err := p.Objects.Get(digest)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, opserr.New(opserr.StorageError, "meta ref for %q points at missing blob", name)
	}
	return objects.ParseMetaDump(content)
}
