package main

import (
	"github.com/pulsefeed/pulsefeed/config"
	"github.com/pulsefeed/pulsefeed/engine"
	"github.com/pulsefeed/pulsefeed/repository"
	"github.com/pulsefeed/pulsefeed/routes"
	"github.com/pulsefeed/pulsefeed/store"
	"github.com/pulsefeed/pulsefeed/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	st, err := store.New(cfg, utils.Sugar)
	if err != nil {
		utils.Sugar.Fatalf("connect document store: %v", err)
	}
	defer st.Close()

	repo := repository.NewPosts(st, utils.Sugar)
	eng := engine.New(st, utils.Sugar)

	r := routes.SetupRouter(repo, eng)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
