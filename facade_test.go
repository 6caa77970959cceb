package federation

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"

	federationcommand "github.com/goliatone/go-federation/command"
	federationquery "github.com/goliatone/go-federation/query"
	"github.com/goliatone/go-federation/security"
)

func newFacadeTestService(t *testing.T) *Service {
	t.Helper()
	hasher := security.NewScryptHasher()
	service, err := NewService(DefaultConfig(),
		WithSecretHasher(hasher),
		WithTokenSecret([]byte("facade-test-secret")),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestNewServiceFacade_WiresCommandsAndQueries(t *testing.T) {
	service := newFacadeTestService(t)

	facade, err := NewServiceFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.TouchLink == nil || commands.ExchangeCode == nil || commands.RevokeRefreshToken == nil {
		t.Fatalf("expected commands to be wired: %#v", commands)
	}
	queries := facade.Queries()
	if queries.GetLinkedView == nil || queries.GetTwinoidOauth == nil {
		t.Fatalf("expected queries to be wired: %#v", queries)
	}
	if facade.Linking() == nil || facade.Oauth() == nil {
		t.Fatalf("expected facade services")
	}
}

func TestFacade_TouchLinkRoundTrip(t *testing.T) {
	service := newFacadeTestService(t)
	facade, err := NewServiceFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	remote := ExternalRef{Provider: ProviderHammerfest, Server: "hammerfest.fr", ID: "123", Username: "alice"}

	collector := gocmd.NewResult[VersionedLink]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	msg := federationcommand.TouchLinkMessage{Input: TouchLinkInput{UserID: "user-a", Remote: remote}}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate touch link: %v", err)
	}
	if err := facade.Commands().TouchLink.Execute(ctx, msg); err != nil {
		t.Fatalf("execute touch link: %v", err)
	}
	linked, ok := collector.Load()
	if !ok {
		t.Fatalf("expected touch link result")
	}
	if linked.Current == nil || linked.Current.UserID != "user-a" {
		t.Fatalf("unexpected link result: %#v", linked)
	}

	view, err := facade.Queries().GetLinkedView.Query(context.Background(), federationquery.GetLinkedViewMessage{UserID: "user-a"})
	if err != nil {
		t.Fatalf("query linked view: %v", err)
	}
	slot := LinkSlot{Provider: ProviderHammerfest, Server: "hammerfest.fr"}
	account, found := view[slot]
	if !found || account.Link.Current == nil {
		t.Fatalf("expected hammerfest link in view: %#v", view)
	}
	if account.Link.Current.Remote.ID != "123" {
		t.Fatalf("unexpected linked account: %#v", account)
	}
}

func TestFacade_RequiresServices(t *testing.T) {
	if _, err := NewFacade(nil, nil); err == nil {
		t.Fatalf("expected error for missing services")
	}
	if _, err := NewServiceFacade(nil); err == nil {
		t.Fatalf("expected error for missing service")
	}
}
