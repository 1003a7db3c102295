package app

import (
	"fmt"
	"log"
	"sync"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/config"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/features"
)

// InputService はボタン入力コア全体の構成と起動・停止を担う
type InputService struct {
	cfg         *config.Config
	statusMutex sync.Mutex
	running     bool

	injector *features.KeyInjector
	hub      *features.KeyEventHub
	keyboard features.KeyboardState
	watcher  *features.DeviceWatcher
	monitor  *features.ButtonDeviceMonitor
	unwatch  func()
}

// NewInputService は新しいInputServiceを作成する
func NewInputService(cfg *config.Config) *InputService {
	return &InputService{cfg: cfg}
}

// Hub は合成キー解放イベントの購読口を返す（ディクテーションワークフロー向け）
func (s *InputService) Hub() *features.KeyEventHub {
	return s.hub
}

// Monitor はボタン通知の購読口を返す
func (s *InputService) Monitor() *features.ButtonDeviceMonitor {
	return s.monitor
}

// Keyboard はキーボードのLED状態参照を返す
// キーボードデバイスが設定されていない・開けなかった場合はnilを返す
func (s *InputService) Keyboard() features.KeyboardState {
	return s.keyboard
}

// Start はサービスを開始する
func (s *InputService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return fmt.Errorf("サービスは既に実行中です")
	}
	if s.cfg.Device.NamePattern == "" {
		return fmt.Errorf("監視対象デバイスの名前パターンが設定されていません")
	}

	s.injector = features.NewKeyInjector(s.cfg.Click.KeySimulationDelay)
	s.hub = features.NewKeyEventHub()
	executor := features.NewActionExecutor(s.injector, s.hub, s.cfg.Click.KeySimulationDelay)

	// CapsLock状態の参照用（ディクテーションワークフロー側が使用する）
	if s.cfg.Device.KeyboardDevice != "" {
		keyboard, err := features.OpenKeyboardState(s.cfg.Device.KeyboardDevice)
		if err != nil {
			log.Printf("キーボードデバイスを開くのに失敗しました（CapsLock状態は参照できません）: %v", err)
		} else {
			s.keyboard = keyboard
		}
	}

	handlers, err := buildHandlers(s.cfg, executor)
	if err != nil {
		return err
	}

	s.monitor = features.NewButtonDeviceMonitor(
		s.cfg.Device.NamePattern,
		s.cfg.Device.RetryInterval,
		s.cfg.Device.LogEvery,
		handlers,
	)

	// ホットプラグを検出したら再接続待ちを即座に起こす
	watcher, err := features.NewDeviceWatcher()
	if err != nil {
		log.Printf("デバイス監視の初期化に失敗しました（ポーリングのみで再接続します）: %v", err)
	} else {
		s.watcher = watcher
		s.unwatch = watcher.Subscribe(s.monitor.Wake)
		if err := watcher.Start(); err != nil {
			log.Printf("デバイス監視の開始に失敗しました: %v", err)
		}
	}

	s.monitor.Start()
	s.running = true
	log.Printf("ボタン入力サービスを開始しました (デバイス: %q)", s.cfg.Device.NamePattern)
	return nil
}

// Stop はサービスを停止する
func (s *InputService) Stop() {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if !s.running {
		return
	}

	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	s.monitor.Stop()
	if s.keyboard != nil {
		if err := s.keyboard.Close(); err != nil {
			log.Printf("キーボードデバイスのクローズに失敗しました: %v", err)
		}
		s.keyboard = nil
	}
	s.running = false
	log.Println("ボタン入力サービスを停止しました")
}

// buildHandlers は設定のバインディングからボタンごとのハンドラを構成する
// 割り当てのない(ボタン, 回数)の組み合わせは何もしない動作になる
func buildHandlers(cfg *config.Config, executor *features.ActionExecutor) (map[features.Button]*features.ButtonClickHandler, error) {
	actions := make(map[features.Button]map[int]features.ButtonAction)
	for _, binding := range cfg.Bindings {
		button, err := parseButton(binding.Button)
		if err != nil {
			return nil, err
		}
		if binding.Clicks < 1 || binding.Clicks > cfg.Click.MaxClickCount {
			return nil, fmt.Errorf("クリック回数が範囲外です: %d (1〜%d)", binding.Clicks, cfg.Click.MaxClickCount)
		}

		action, err := buildAction(binding)
		if err != nil {
			return nil, err
		}

		if _, ok := actions[button]; !ok {
			actions[button] = make(map[int]features.ButtonAction)
		}
		if _, dup := actions[button][binding.Clicks]; dup {
			return nil, fmt.Errorf("バインディングが重複しています: %s のクリック %d 回", binding.Button, binding.Clicks)
		}
		actions[button][binding.Clicks] = action
	}

	handlers := make(map[features.Button]*features.ButtonClickHandler, len(actions))
	for button, byCount := range actions {
		handlers[button] = features.NewButtonClickHandler(
			button,
			cfg.Click.Threshold,
			cfg.Click.Debounce,
			cfg.Click.MaxClickCount,
			executor,
			byCount[1],
			byCount[2],
			byCount[3],
		)
	}
	return handlers, nil
}

// buildAction は1つのバインディング設定を動作に変換する
func buildAction(binding config.BindingConfig) (features.ButtonAction, error) {
	switch binding.Action {
	case "key":
		if binding.Key == 0 {
			return features.NoAction, fmt.Errorf("keyアクションにキーコードが指定されていません")
		}
		return features.NewKeyPressAction(binding.Key, binding.RaiseRelease), nil

	case "combo":
		if binding.Key == 0 {
			return features.NoAction, fmt.Errorf("comboアクションにキーコードが指定されていません")
		}
		switch len(binding.Modifiers) {
		case 1:
			return features.NewKeyComboAction(binding.Modifiers[0], binding.Key), nil
		case 2:
			return features.NewKeyComboWithTwoModifiersAction(binding.Modifiers[0], binding.Modifiers[1], binding.Key), nil
		default:
			return features.NoAction, fmt.Errorf("comboアクションの修飾キーは1つまたは2つ指定してください (指定数: %d)", len(binding.Modifiers))
		}

	case "shell":
		if binding.Command == "" {
			return features.NoAction, fmt.Errorf("shellアクションにコマンドが指定されていません")
		}
		return features.NewShellCommandAction(binding.Command), nil

	case "", "none":
		return features.NoAction, nil

	default:
		return features.NoAction, fmt.Errorf("未知のアクションです: %q", binding.Action)
	}
}

// parseButton は設定上のボタン名をButtonに変換する
func parseButton(name string) (features.Button, error) {
	switch name {
	case "left":
		return features.ButtonLeft, nil
	case "middle":
		return features.ButtonMiddle, nil
	case "right":
		return features.ButtonRight, nil
	default:
		return 0, fmt.Errorf("未知のボタンです: %q", name)
	}
}
