package main

import (
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"

	"etix/src/booking"
	"etix/src/boot"
	"etix/src/config"
	"etix/src/ledger"
	"etix/src/lib"
	"etix/src/reaper"
	"etix/src/repository"

	"github.com/covalenthq/lumberjack"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
)

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if config.API_ENV == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	gdb := boot.InitDb()
	boot.InitScheduler()

	rdb := lib.GetRedisClient()
	lib.TestRedis()
	repo := repository.New(gdb)
	led := ledger.New(repo, rdb)
	engine := booking.NewEngine(repo, led)

	r := reaper.New(engine, rdb)
	if err := r.Register(); err != nil {
		log.Fatalf("could not start reaper: %s", err.Error())
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	boot.StopScheduler()
}
