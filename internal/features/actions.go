package features

import (
	"fmt"
	"log"
	"os/exec"
	"time"
)

// ActionType はボタンに割り当てられる動作の種別を表す
type ActionType int

const (
	ActionNone ActionType = iota
	ActionKeyPress
	ActionKeyCombo
	ActionKeyCombo2
	ActionShellCommand
)

// ButtonAction はボタンのクリックに割り当てられた動作を表す
// 種別は閉じた集合であり、Typeに応じたフィールドのみが意味を持つ
type ButtonAction struct {
	Type              ActionType
	Key               int    // 合成するメインキー
	Modifier          int    // 修飾キー（ActionKeyCombo / ActionKeyCombo2）
	SecondModifier    int    // 2つ目の修飾キー（ActionKeyCombo2）
	Command           string // 実行するシェルコマンド（ActionShellCommand）
	RaiseReleaseEvent bool   // 合成後にキー解放イベントを通知するか
}

// NoAction は何もしない動作
var NoAction = ButtonAction{Type: ActionNone}

// NewKeyPressAction は単一キーを合成する動作を作成する
func NewKeyPressAction(key int, raiseReleaseEvent bool) ButtonAction {
	return ButtonAction{Type: ActionKeyPress, Key: key, RaiseReleaseEvent: raiseReleaseEvent}
}

// NewKeyComboAction は修飾キー1つとメインキーの組み合わせを合成する動作を作成する
func NewKeyComboAction(modifier, key int) ButtonAction {
	return ButtonAction{Type: ActionKeyCombo, Modifier: modifier, Key: key}
}

// NewKeyComboWithTwoModifiersAction は修飾キー2つとメインキーの組み合わせを合成する動作を作成する
func NewKeyComboWithTwoModifiersAction(modifier, secondModifier, key int) ButtonAction {
	return ButtonAction{Type: ActionKeyCombo2, Modifier: modifier, SecondModifier: secondModifier, Key: key}
}

// NewShellCommandAction は外部コマンドを起動する動作を作成する
func NewShellCommandAction(command string) ButtonAction {
	return ButtonAction{Type: ActionShellCommand, Command: command}
}

// Name は動作のログ表示用の名前を返す
func (a ButtonAction) Name() string {
	switch a.Type {
	case ActionKeyPress:
		return fmt.Sprintf("キー入力 (key=%d)", a.Key)
	case ActionKeyCombo:
		return fmt.Sprintf("キーコンボ (mod=%d, key=%d)", a.Modifier, a.Key)
	case ActionKeyCombo2:
		return fmt.Sprintf("キーコンボ (mod=%d+%d, key=%d)", a.Modifier, a.SecondModifier, a.Key)
	case ActionShellCommand:
		return fmt.Sprintf("シェルコマンド (%s)", a.Command)
	default:
		return "何もしない"
	}
}

// KeyEventSink は合成したキー入力を実入力と同様に扱わせるための通知先
// ディクテーションワークフロー側のキーボードモニターが実装する
type KeyEventSink interface {
	RaiseKeyReleased(key int)
}

// ActionExecutor はButtonActionを種別ごとに実行する
type ActionExecutor struct {
	injector     *KeyInjector
	sink         KeyEventSink
	releaseDelay time.Duration // 合成後に解放イベントを通知するまでの待機時間
}

// NewActionExecutor は新しいActionExecutorを作成する
func NewActionExecutor(injector *KeyInjector, sink KeyEventSink, releaseDelay time.Duration) *ActionExecutor {
	return &ActionExecutor{
		injector:     injector,
		sink:         sink,
		releaseDelay: releaseDelay,
	}
}

// Execute は動作を実行する
func (ae *ActionExecutor) Execute(action ButtonAction) error {
	switch action.Type {
	case ActionNone:
		return nil

	case ActionKeyPress:
		if err := ae.injector.PressKey(action.Key); err != nil {
			return err
		}
		// 合成したキーを実際の入力と同様に扱わせるため、少し待ってから解放を通知する
		if action.RaiseReleaseEvent && ae.sink != nil {
			time.Sleep(ae.releaseDelay)
			ae.sink.RaiseKeyReleased(action.Key)
		}
		return nil

	case ActionKeyCombo:
		return ae.injector.PressCombo(action.Modifier, action.Key)

	case ActionKeyCombo2:
		return ae.injector.PressCombo(action.Modifier, action.SecondModifier, action.Key)

	case ActionShellCommand:
		cmd := exec.Command("sh", "-c", action.Command)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("コマンドの起動に失敗しました: %w", err)
		}
		// 実行結果は待たない（出力も回収しない）
		go func() { _ = cmd.Wait() }()
		return nil

	default:
		return fmt.Errorf("未知の動作種別です: %d", action.Type)
	}
}

// ButtonClickHandler は1つのボタンのクリック分類と動作の割り当てを結び付ける
type ButtonClickHandler struct {
	button   Button
	detector *ClickDetector
	actions  map[ClickKind]ButtonAction
	executor *ActionExecutor
}

// NewButtonClickHandler はsingle/double/tripleの3つの動作を束ねたハンドラを作成する
// 割り当てのないクリック種別はNoActionになる
func NewButtonClickHandler(
	button Button,
	threshold, debounce time.Duration,
	maxCount int,
	executor *ActionExecutor,
	single, double, triple ButtonAction,
) *ButtonClickHandler {
	h := &ButtonClickHandler{
		button:   button,
		executor: executor,
		actions: map[ClickKind]ButtonAction{
			SingleClick: single,
			DoubleClick: double,
			TripleClick: triple,
		},
	}
	h.detector = NewClickDetector(threshold, debounce, maxCount, h.onClassified)
	return h
}

// RegisterClick はボタンの押下1回を検出器に登録する
func (h *ButtonClickHandler) RegisterClick() error {
	return h.detector.RegisterClick()
}

// Dispose はハンドラと検出器を破棄する
func (h *ButtonClickHandler) Dispose() {
	h.detector.Dispose()
}

// onClassified は分類結果に対応する動作を実行する
// 読み取りループを塞がないよう、実行は別ゴルーチンで行う
func (h *ButtonClickHandler) onClassified(kind ClickKind) {
	action := h.actions[kind]
	if action.Type == ActionNone {
		return
	}

	log.Printf("%s の %s に割り当てられた動作を実行します: %s", h.button, kind, action.Name())
	go func() {
		if err := h.executor.Execute(action); err != nil {
			log.Printf("動作の実行に失敗しました (%s): %v", action.Name(), err)
		}
	}()
}
