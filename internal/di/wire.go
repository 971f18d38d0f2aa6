//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/app"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/config"
)

func InitializeApp(cfg *config.Config) (*app.App, error) {
	panic(wire.Build(
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		AppSet,
	))
}
