package sqlstore

import "github.com/goliatone/go-federation/core"

var (
	_ core.LinkStore              = (*LinkStore)(nil)
	_ core.TokenStore             = (*TokenStore)(nil)
	_ core.OauthProviderStore     = (*OauthProviderStore)(nil)
	_ core.ReplayLedger           = (*ReplayLedger)(nil)
	_ core.ArchiveStore           = (*ArchiveStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
