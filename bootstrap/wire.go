//go:build wireinject
// +build wireinject

package bootstrap

import (
	"x-sub/database"
	"x-sub/database/repository"
	"x-sub/sub"
	"x-sub/web/controller"
	"x-sub/web/service"

	"github.com/google/wire"
)

func InitializeApp() (*App, error) {
	wire.Build(
		database.GetDBProvider,
		repository.RepositorySet,
		service.ServiceSet,
		sub.NewRenderers,
		wire.Struct(new(controller.Services), "*"),
		NewApp,
	)
	return nil, nil
}
