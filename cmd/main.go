package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/app"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/config"
)

func main() {
	// コマンドライン引数の解析
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	devicePattern := flag.String("device", "", "監視対象デバイス名のパターン (設定ファイルより優先)")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if *devicePattern != "" {
		cfg.Device.NamePattern = *devicePattern
	}

	// ボタン入力サービスの起動
	service := app.NewInputService(cfg)
	if err := service.Start(); err != nil {
		log.Fatalf("ボタン入力サービスの起動に失敗しました: %v", err)
	}

	// シグナルが来るまで待機
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("シャットダウンします...")
	service.Stop()
}
