package auth

// Permission keys are dot-namespaced capability identifiers. Every key the
// service authorizes against must be declared here; the catalog is synced
// into storage additively at startup (see Service.SyncCatalog).

// Game management.
const (
	PermGMModuleAccess        = "gm.module.access"
	PermGMGamesRead           = "gm.games.read"
	PermGMGamesEdit           = "gm.games.edit"
	PermGMGamesFeatureSet     = "gm.games.feature.set"
	PermGMGamesVisibility     = "gm.games.visibility.update"
	PermGMGamesPlatformToggle = "gm.games.platform.toggle"
	PermGMPresetsManage       = "gm.presets.manage"
	PermGMConfigRead          = "gm.config.read"
	PermGMConfigCreate        = "gm.config.create"
	PermGMConfigUpdate        = "gm.config.update"
	PermGMConfigDelete        = "gm.config.delete"
	PermGMConfigImport        = "gm.config.import"
	PermGMConfigExport        = "gm.config.export"
	PermGMPlatformsRead       = "gm.platforms.read"
	PermGMPlatformsCreate     = "gm.platforms.create"
	PermGMPlatformsUpdate     = "gm.platforms.update"
	PermGMPlatformsDelete     = "gm.platforms.delete"
)

// User management.
const (
	PermUsersRead   = "users.read"
	PermUsersCreate = "users.create"
	PermUsersUpdate = "users.update"
	PermUsersDelete = "users.delete"
	PermUsersManage = "users.manage"
)

// Role management.
const (
	PermRolesRead   = "roles.read"
	PermRolesCreate = "roles.create"
	PermRolesUpdate = "roles.update"
	PermRolesDelete = "roles.delete"
	PermRolesManage = "roles.manage"
)

// GroupGameManagement lists every game-management permission, in catalog order.
var GroupGameManagement = []string{
	PermGMModuleAccess,
	PermGMGamesRead,
	PermGMGamesEdit,
	PermGMGamesFeatureSet,
	PermGMGamesVisibility,
	PermGMGamesPlatformToggle,
	PermGMPresetsManage,
	PermGMConfigRead,
	PermGMConfigCreate,
	PermGMConfigUpdate,
	PermGMConfigDelete,
	PermGMConfigImport,
	PermGMConfigExport,
	PermGMPlatformsRead,
	PermGMPlatformsCreate,
	PermGMPlatformsUpdate,
	PermGMPlatformsDelete,
}

// GroupUserManagement lists every user-management permission.
var GroupUserManagement = []string{
	PermUsersRead,
	PermUsersCreate,
	PermUsersUpdate,
	PermUsersDelete,
	PermUsersManage,
}

// GroupRoleManagement lists every role-management permission.
var GroupRoleManagement = []string{
	PermRolesRead,
	PermRolesCreate,
	PermRolesUpdate,
	PermRolesDelete,
	PermRolesManage,
}

// Groups maps logical permission group names to their keys, for role
// management UIs.
var Groups = map[string][]string{
	"game_management": GroupGameManagement,
	"user_management": GroupUserManagement,
	"role_management": GroupRoleManagement,
}

// Catalog returns every declared permission key. The slice is freshly
// allocated on each call so callers may mutate it.
func Catalog() []string {
	out := make([]string, 0, len(GroupGameManagement)+len(GroupUserManagement)+len(GroupRoleManagement))
	out = append(out, GroupGameManagement...)
	out = append(out, GroupUserManagement...)
	out = append(out, GroupRoleManagement...)
	return out
}
