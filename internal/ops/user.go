package ops

import (
	"context"

	"github.com/untoldecay/moobase/internal/opserr"
	"github.com/untoldecay/moobase/internal/types"
)

func userOperations() []*Operation {
	return []*Operation{
		{Name: "user/create", RequiredPermission: types.PermCreateUser, Execute: userCreate},
		{Name: "user/delete", RequiredPermission: types.PermDeleteUser, Execute: userDelete},
		{Name: "user/enable", RequiredPermission: types.PermDisableUser, Execute: userEnable},
		{Name: "user/disable", RequiredPermission: types.PermDisableUser, Execute: userDisable},
		{Name: "user/list", Execute: userList},
		{Name: "user/add_permission", RequiredPermission: types.PermManagePermissions, Execute: userAddPermission},
		{Name: "user/remove_permission", RequiredPermission: types.PermManagePermissions, Execute: userRemovePermission},
		// API-key operations are self-service: a caller may always
		// mint/revoke a key for their own account, so the permission
		// gate is applied inline rather than via RequiredPermission.
		{Name: "user/generate_api_key", Execute: userGenerateAPIKey},
		{Name: "user/delete_api_key", Execute: userDeleteAPIKey},
	}
}

func userSummary(u *types.User) map[string]any {
	perms := make([]string, 0, len(u.Permissions))
	for p := range u.Permissions {
		perms = append(perms, string(p))
	}
	return map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"disabled":    u.Disabled,
		"system":      u.System,
		"permissions": perms,
	}
}

func userCreate(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "user/create <id> [email]"); err != nil {
		return nil, err
	}
	var email string
	if len(args) > 1 {
		email = args[1]
	}
	u, err := p.Users.Create(args[0], email)
	if err != nil {
		return nil, err
	}
	p.record(ctx, "user.create", user.ID, "user", u.ID, email)
	return userSummary(u), nil
}

func userDelete(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "user/delete <id>"); err != nil {
		return nil, err
	}
	if err := p.Users.Delete(args[0]); err != nil {
		return nil, err
	}
	p.record(ctx, "user.delete", user.ID, "user", args[0], "")
	return "ok", nil
}

func userEnable(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "user/enable <id>"); err != nil {
		return nil, err
	}
	u, err := p.Users.SetDisabled(args[0], false)
	if err != nil {
		return nil, err
	}
	return userSummary(u), nil
}

func userDisable(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "user/disable <id>"); err != nil {
		return nil, err
	}
	u, err := p.Users.SetDisabled(args[0], true)
	if err != nil {
		return nil, err
	}
	p.record(ctx, "user.disable", user.ID, "user", args[0], "")
	return userSummary(u), nil
}

func userList(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	all, err := p.Users.List()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(all))
	for _, u := range all {
		out = append(out, userSummary(u))
	}
	return out, nil
}

func userAddPermission(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 2, "user/add_permission <id> <permission>"); err != nil {
		return nil, err
	}
	u, err := p.Users.AddPermission(args[0], types.Permission(args[1]))
	if err != nil {
		return nil, err
	}
	p.record(ctx, "user.add_permission", user.ID, "user", args[0], args[1])
	return userSummary(u), nil
}

func userRemovePermission(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 2, "user/remove_permission <id> <permission>"); err != nil {
		return nil, err
	}
	u, err := p.Users.RemovePermission(args[0], types.Permission(args[1]))
	if err != nil {
		return nil, err
	}
	return userSummary(u), nil
}

// userGenerateAPIKey is self-service for the caller's own account; a
// caller holding ManageApiKeys may mint one for anyone else.
func userGenerateAPIKey(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 1, "user/generate_api_key <id>"); err != nil {
		return nil, err
	}
	if args[0] != user.ID && !user.HasPermission(types.PermManageApiKeys) {
		return nil, opserr.New(opserr.PermissionDenied, "cannot mint an API key for another user")
	}
	key, err := p.Users.GenerateAPIKey(args[0])
	if err != nil {
		return nil, err
	}
	p.record(ctx, "user.generate_api_key", user.ID, "user", args[0], "")
	return map[string]any{"id": args[0], "api_key": key}, nil
}

func userDeleteAPIKey(ctx context.Context, p *Providers, user *types.User, args []string) (any, error) {
	if err := requireArgs(args, 2, "user/delete_api_key <id> <key>"); err != nil {
		return nil, err
	}
	if args[0] != user.ID && !user.HasPermission(types.PermManageApiKeys) {
		return nil, opserr.New(opserr.PermissionDenied, "cannot revoke an API key for another user")
	}
	if err := p.Users.DeleteAPIKey(args[0], args[1]); err != nil {
		return nil, err
	}
	return "ok", nil
}
