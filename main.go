package main

import (
	"evcore/internal/config"
	"evcore/metrics"
	"evcore/server"
	"log"
)

func main() {

	conf, err := config.GetConfig()
	if err != nil {
		log.Println("configuration load failed:", err)
		return
	}

	go func() {
		if err := metrics.Listen(conf); err != nil {
			log.Println("metrics server failed:", err)
		}
	}()

	centralSystem, err := server.NewCentralSystem(conf)
	if err != nil {
		log.Println("central system initialization failed:", err)
		return
	}
	centralSystem.Start()

}
