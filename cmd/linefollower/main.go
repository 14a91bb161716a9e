package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linefollower_go/internal/config"
	"linefollower_go/internal/control"
	"linefollower_go/internal/server"
	"linefollower_go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "caminho do arquivo de configuração JSON (padrão: "+config.DefaultPath+")")
	flag.Parse()

	logger.Init()
	defer logger.Sync()

	displayBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Erro ao carregar configurações", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("%v, usando INFO", err)
	}
	logger.SetLevel(level)

	if cfg.Log.File {
		if err := logger.EnableFileLogging(cfg.Log.Dir, "linefollower"); err != nil {
			logger.Warnf("Log em arquivo desabilitado: %v", err)
		}
	}

	logger.Infof("Configuração carregada: sensor %s em %s, atuadores %s em %s",
		cfg.Vision.Transport, cfg.Vision.Address, cfg.Steering.Transport, cfg.Steering.Address)
	logger.Infof("Ciclo: %v, coluna alvo: %d, Kp=%.3f Ki=%.3f Kd=%.3f",
		cfg.Control.CycleInterval.Duration, cfg.Control.TargetColumn, cfg.PID.Kp, cfg.PID.Ki, cfg.PID.Kd)

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Erro ao criar servidor", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, control.ErrStartup) {
			logger.Fatal("Falha na inicialização do veículo", err)
		}
		if err != nil {
			logger.Error("Servidor encerrado com erro", err)
		}
	case sig := <-quit:
		logger.Infof("Sinal %v recebido, desligando...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Erro durante o shutdown do servidor", err)
	}

	logger.Info("Servidor encerrado com sucesso")
}

func displayBanner() {
	banner := `
  _     _              _____     _ _
 | |   (_)_ __   ___  |  ___|__ | | | _____      _____ _ __
 | |   | | '_ \ / _ \ | |_ / _ \| | |/ _ \ \ /\ / / _ \ '__|
 | |___| | | | |  __/ |  _| (_) | | | (_) \ V  V /  __/ |
 |_____|_|_| |_|\___| |_|  \___/|_|_|\___/ \_/\_/ \___|_|   v` + server.Version + `
`
	fmt.Println(banner)
	fmt.Printf("Iniciando em %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
}
