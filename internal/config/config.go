package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定を表す構造体
type Config struct {
	Device   DeviceConfig    `toml:"device"`
	Click    ClickConfig     `toml:"click"`
	Bindings []BindingConfig `toml:"binding"`
}

// DeviceConfig は監視対象デバイスの設定
type DeviceConfig struct {
	NamePattern    string        `toml:"name_pattern"`    // デバイス名の部分一致パターン
	RetryInterval  time.Duration `toml:"retry_interval"`  // 再接続の試行間隔
	LogEvery       int           `toml:"log_every"`       // 接続待ちログを出力する試行回数の間隔
	KeyboardDevice string        `toml:"keyboard_device"` // LED状態参照用のキーボードデバイスパス
}

// ClickConfig はクリック分類の設定
type ClickConfig struct {
	Threshold          time.Duration `toml:"threshold"`            // 連続クリックとみなす間隔
	Debounce           time.Duration `toml:"debounce"`             // チャタリングとして捨てる間隔
	MaxClickCount      int           `toml:"max_click_count"`      // 分類する最大クリック回数
	KeySimulationDelay time.Duration `toml:"key_simulation_delay"` // キー合成時の待機時間
}

// BindingConfig は(ボタン, クリック回数)への動作の割り当て
type BindingConfig struct {
	Button       string `toml:"button"`        // left / middle / right
	Clicks       int    `toml:"clicks"`        // 1〜max_click_count
	Action       string `toml:"action"`        // key / combo / shell / none
	Key          int    `toml:"key"`           // 合成するメインキーのコード
	Modifiers    []int  `toml:"modifiers"`     // comboの修飾キーコード（1つまたは2つ）
	Command      string `toml:"command"`       // shellで実行するコマンド
	RaiseRelease bool   `toml:"raise_release"` // 合成後にキー解放イベントを通知するか
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			NamePattern:    "",
			RetryInterval:  2000 * time.Millisecond,
			LogEvery:       30,
			KeyboardDevice: "",
		},
		Click: ClickConfig{
			Threshold:          800 * time.Millisecond,
			Debounce:           50 * time.Millisecond,
			MaxClickCount:      3,
			KeySimulationDelay: 100 * time.Millisecond,
		},
		Bindings: []BindingConfig{
			{Button: "left", Clicks: 1, Action: "key", Key: 58, RaiseRelease: true}, // CapsLock
		},
	}
}

// GetDefaultConfigDir はデフォルトの設定ディレクトリを返す
func GetDefaultConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "speechtotext"), nil
}

// LoadConfig は設定ファイルから設定を読み込む
// 未設定の項目はデフォルト値のまま保たれる
func LoadConfig(configPath string) (*Config, error) {
	// デフォルト設定を用意
	config := DefaultConfig()

	// ファイルが存在しない場合はデフォルト設定を保存して返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveConfig(configPath, config); err != nil {
			return config, err
		}
		return config, nil
	}

	// 設定ファイルの読み込み
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig は設定をTOMLファイルに保存する
func SaveConfig(configPath string, config *Config) error {
	// 設定ディレクトリの作成
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	// ファイルを開く（なければ作成）
	f, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// TOML形式でエンコードして書き込み
	encoder := toml.NewEncoder(f)
	return encoder.Encode(config)
}
