// @title Phonechat
// @version 0.1
// @description Phone-authenticated one-to-one messenger API.

// @host localhost:8080
// @BasePath /
// @query.collection.format multi
// @schemes http

package main

import (
	"log"

	_ "tush00nka/phonechat/docs"
	"tush00nka/phonechat/internal/app"
	"tush00nka/phonechat/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	app.Run(cfg)
}
